package share

import (
	"context"
	"crosssync/metrics"
	"crosssync/pkg/domain"
	"crosssync/svc/util"
	"net/url"
)

const SourceURL = "url"

// Loader is the storage side of retrieval, satisfied by persist.Shim.
type Loader interface {
	Load(ctx context.Context, id string) (*domain.SharedContent, string, error)
}

// Resolve finds the record for id: the URL payload first, then each store in order.
// An absent or unreadable payload falls back to storage; only a full miss is an error.
func Resolve(ctx context.Context, id string, q url.Values, stores Loader) (*domain.SharedContent, string, error) {
	rec, err := DecodeQuery(q)
	switch {
	case err == nil:
		if rec.ID == "" {
			rec.ID = id
		}
		if rec.ID != id {
			util.Warn().Str("path_id", id).Str("payload_id", rec.ID).Msg("share payload id differs from path, payload wins")
		}
		metrics.ContentLoads.WithLabelValues(SourceURL).Inc()
		return rec, SourceURL, nil
	case domain.KindOf(err) == domain.KindMalformedPayload:
		util.Warn().Err(err).Str("id", id).Msg("failed to parse share payload, falling back to storage")
	}
	if stores == nil {
		metrics.ContentLoads.WithLabelValues("none").Inc()
		return nil, "", domain.ErrContentNotFound
	}
	rec, src, err := stores.Load(ctx, id)
	if err != nil {
		metrics.ContentLoads.WithLabelValues("none").Inc()
		return nil, "", err
	}
	metrics.ContentLoads.WithLabelValues(src).Inc()
	return rec, src, nil
}
