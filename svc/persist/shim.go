package persist

import (
	"context"
	"crosssync/metrics"
	"crosssync/pkg/domain"
	"crosssync/svc/util"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Shim writes every record to all stores and reads from the first that has it.
// Store order is the retrieval priority: durable first, then session.
type Shim struct {
	stores  []Store
	session Store
}

type SaveReport struct {
	Written []string
	Failed  map[string]error
}

func (r SaveReport) OK() bool {
	return len(r.Written) > 0
}

func NewShim(durable, session Store) *Shim {
	s := &Shim{session: session}
	for _, st := range []Store{durable, session} {
		if st != nil {
			s.stores = append(s.stores, st)
		}
	}
	if len(s.stores) == 0 {
		panic("persist: shim needs at least one store")
	}
	return s
}

func (s *Shim) Stores() []Store {
	return s.stores
}

// Save never fails the caller: each backend is attempted and failures are only reported.
func (s *Shim) Save(ctx context.Context, rec *domain.SharedContent) SaveReport {
	report := SaveReport{Failed: map[string]error{}}
	data, err := json.Marshal(rec)
	if err != nil {
		util.Error().Err(err).Str("id", rec.ID).Msg("marshal shared content")
		for _, st := range s.stores {
			report.Failed[st.Name()] = err
		}
		return report
	}
	key := domain.StorageKey(rec.ID)
	for _, st := range s.stores {
		if err := st.Set(ctx, key, data); err != nil {
			metrics.StoreWriteFailures.WithLabelValues(st.Name()).Inc()
			util.Warn().Err(err).Str("store", st.Name()).Str("id", rec.ID).Msg("store unavailable, continuing")
			report.Failed[st.Name()] = err
			continue
		}
		report.Written = append(report.Written, st.Name())
	}
	return report
}

// Load returns the record and the name of the store that held it.
func (s *Shim) Load(ctx context.Context, id string) (*domain.SharedContent, string, error) {
	key := domain.StorageKey(id)
	for _, st := range s.stores {
		data, err := st.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				util.Warn().Err(err).Str("store", st.Name()).Str("id", id).Msg("store read failed, trying next")
			}
			continue
		}
		var rec domain.SharedContent
		if err := json.Unmarshal(data, &rec); err != nil {
			util.Warn().Err(err).Str("store", st.Name()).Str("id", id).Msg("malformed stored record, trying next")
			continue
		}
		return &rec, st.Name(), nil
	}
	return nil, "", domain.ErrContentNotFound
}

// Exists reports whether any store holds id. It fails only if every store errored.
func (s *Shim) Exists(ctx context.Context, id string) (bool, error) {
	key := domain.StorageKey(id)
	var lastErr error
	failed := 0
	for _, st := range s.stores {
		_, err := st.Get(ctx, key)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
			failed++
		}
	}
	if failed == len(s.stores) {
		return false, errors.Wrap(lastErr, "exists")
	}
	return false, nil
}

// PutHandoff parks h under token. A positive ttl is honoured by stores that support it.
func (s *Shim) PutHandoff(ctx context.Context, token string, h domain.EditHandoff, ttl time.Duration) error {
	data, err := json.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "marshal handoff")
	}
	st := s.handoffStore()
	key := domain.HandoffKey(token)
	if ts, ok := st.(TTLStore); ok && ttl > 0 {
		err = ts.SetTTL(ctx, key, data, ttl)
	} else {
		err = st.Set(ctx, key, data)
	}
	if err != nil {
		return errors.Wrap(domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// TakeHandoff reads and removes the handoff; a second call reports ErrHandoffNotFound.
func (s *Shim) TakeHandoff(ctx context.Context, token string) (*domain.EditHandoff, error) {
	st := s.handoffStore()
	key := domain.HandoffKey(token)
	var data []byte
	var err error
	if tk, ok := st.(Taker); ok {
		data, err = tk.Take(ctx, key)
	} else {
		data, err = st.Get(ctx, key)
		if err == nil {
			if derr := st.Delete(ctx, key); derr != nil {
				util.Warn().Err(derr).Str("store", st.Name()).Msg("failed to clear handoff")
			}
		}
	}
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrHandoffNotFound
	}
	if err != nil {
		return nil, errors.Wrap(domain.ErrStoreUnavailable, err.Error())
	}
	var h domain.EditHandoff
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, domain.ErrHandoffNotFound
	}
	return &h, nil
}

func (s *Shim) handoffStore() Store {
	if s.session != nil {
		return s.session
	}
	return s.stores[0]
}

type PingResult struct {
	Store   string
	Err     error
	Latency time.Duration
}

func (s *Shim) Ping(ctx context.Context) []PingResult {
	out := make([]PingResult, 0, len(s.stores))
	for _, st := range s.stores {
		start := time.Now()
		err := st.Ping(ctx)
		out = append(out, PingResult{Store: st.Name(), Err: err, Latency: time.Since(start)})
	}
	return out
}
