package api

import (
	"context"
	"crosssync/svc/util"
	"encoding/json"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is degraded while any store is down and not ready once all are:
// share links still work from their payload alone.
type ReadyResponse struct {
	Ready    bool              `json:"ready"`
	Degraded bool              `json:"degraded"`
	Stores   map[string]string `json:"stores"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	resp := ReadyResponse{Ready: true, Stores: map[string]string{}}
	down := 0
	results := s.shim.Ping(ctx)
	for _, res := range results {
		if res.Err != nil {
			util.Error().Err(res.Err).Str("store", res.Store).Msg("store health check failed")
			resp.Stores[res.Store] = "down"
			down++
			continue
		}
		resp.Stores[res.Store] = "up"
	}
	resp.Degraded = down > 0
	resp.Ready = down < len(results)
	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(resp)
}
