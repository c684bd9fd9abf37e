package svc

import (
	"context"
	"crosssync/cfg"
	"crosssync/metrics"
	"crosssync/pkg/domain"
	"crosssync/svc/deliver"
	"crosssync/svc/editor"
	"crosssync/svc/export"
	"crosssync/svc/persist"
	"crosssync/svc/qr"
	"crosssync/svc/share"
	"crosssync/svc/util"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var errShuttingDown = domain.NewErr("SHUTTING_DOWN", "service shutting down", http.StatusServiceUnavailable, domain.KindInternal)

type Content struct {
	shim     *persist.Shim
	qr       *qr.Renderer
	cfg      *cfg.Cfg
	now      func() time.Time
	mu       sync.RWMutex
	shutdown bool
	opWg     sync.WaitGroup
}

type ShareResult struct {
	Record *domain.SharedContent
	URL    string
	QRURL  string
	Saved  []string
}

func NewContent(shim *persist.Shim, r *qr.Renderer, c *cfg.Cfg) *Content {
	if shim == nil || r == nil || c == nil {
		panic("content service: nil dependency (shim, qr, or cfg)")
	}
	return &Content{shim: shim, qr: r, cfg: c, now: time.Now}
}

func (s *Content) begin() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.shutdown {
		return errShuttingDown
	}
	s.opWg.Add(1)
	return nil
}

// Shutdown rejects new work and waits for in-flight operations and QR prefetches.
func (s *Content) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.opWg.Wait()
	s.qr.Close(10 * time.Second)
	util.Debug().Msg("content service shutdown complete")
}

// Share stores content under a fresh id and returns its self-describing link.
// Storage failures are logged; the link works without them.
func (s *Content) Share(ctx context.Context, params domain.ShareParams) (*ShareResult, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.opWg.Done()
	if strings.TrimSpace(params.Content) == "" {
		return nil, domain.ErrContentRequired
	}
	if int64(len(params.Content)) > s.cfg.MaxContentSize {
		return nil, domain.ErrContentTooLarge
	}
	id := util.GenID(ctx, s.shim.Exists)
	rec := domain.NewSharedContent(id, params.Content, params.UserName, s.now())
	res, err := s.publish(ctx, rec)
	if err != nil {
		return nil, err
	}
	metrics.SharesCreated.Inc()
	util.Info().Str("id", id).Strs("stores", res.Saved).Msg("content shared")
	return res, nil
}

func (s *Content) publish(ctx context.Context, rec *domain.SharedContent) (*ShareResult, error) {
	report := s.shim.Save(ctx, rec)
	if !report.OK() {
		util.Warn().Str("id", rec.ID).Msg("no store accepted the record, link payload only")
	}
	link, err := share.Encode(rec, s.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	s.qr.Warm(link)
	return &ShareResult{
		Record: rec,
		URL:    link,
		QRURL:  s.qr.ImageURL(link),
		Saved:  report.Written,
	}, nil
}

// Open resolves id, preferring the payload in q over storage.
func (s *Content) Open(ctx context.Context, id string, q url.Values) (*domain.SharedContent, string, error) {
	if err := s.begin(); err != nil {
		return nil, "", err
	}
	defer s.opWg.Done()
	return share.Resolve(ctx, id, q, s.shim)
}

// SaveEdit replaces the content of a shared record and re-links it.
func (s *Content) SaveEdit(ctx context.Context, id string, q url.Values, html string) (*ShareResult, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.opWg.Done()
	if int64(len(html)) > s.cfg.MaxContentSize {
		return nil, domain.ErrContentTooLarge
	}
	rec, _, err := share.Resolve(ctx, id, q, s.shim)
	if err != nil {
		return nil, err
	}
	// Edits are keyed by the path id, whatever id the payload carries.
	if rec.ID != id {
		util.Warn().Str("path_id", id).Str("payload_id", rec.ID).Msg("edit saved under path id")
		rec.ID = id
	}
	rec.ApplyEdit(html, s.now())
	res, err := s.publish(ctx, rec)
	if err != nil {
		return nil, err
	}
	metrics.SharesEdited.Inc()
	return res, nil
}

// Handoff parks the record for the primary editor and returns a one-time token.
func (s *Content) Handoff(ctx context.Context, id string, q url.Values) (string, error) {
	if err := s.begin(); err != nil {
		return "", err
	}
	defer s.opWg.Done()
	rec, _, err := share.Resolve(ctx, id, q, s.shim)
	if err != nil {
		return "", err
	}
	token := util.NewToken()
	h := domain.EditHandoff{Content: rec.Content, UserName: rec.UserName, FromShared: true, SharedID: id}
	if err := s.shim.PutHandoff(ctx, token, h, s.cfg.HandoffTTL); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Content) TakeHandoff(ctx context.Context, token string) (*domain.EditHandoff, domain.Stats, error) {
	if err := s.begin(); err != nil {
		return nil, domain.Stats{}, err
	}
	defer s.opWg.Done()
	h, err := s.shim.TakeHandoff(ctx, token)
	if err != nil {
		return nil, domain.Stats{}, err
	}
	return h, domain.ComputeStats(h.Content), nil
}

// Export projects the record into a paginated text document and its download name.
func (s *Content) Export(ctx context.Context, id string, q url.Values) (*export.Document, string, error) {
	rec, _, err := s.Open(ctx, id, q)
	if err != nil {
		return nil, "", err
	}
	layout := export.DefaultLayout
	layout.Width = s.cfg.ExportWidth
	doc, err := export.Project(rec, s.cfg.BaseURL, layout)
	if err != nil {
		return nil, "", err
	}
	metrics.Exports.Inc()
	return doc, export.Filename(rec, s.now()), nil
}

func (s *Content) link(ctx context.Context, id string, q url.Values) (*domain.SharedContent, string, error) {
	rec, _, err := s.Open(ctx, id, q)
	if err != nil {
		return nil, "", err
	}
	link, err := share.Encode(rec, s.cfg.BaseURL)
	if err != nil {
		return nil, "", err
	}
	return rec, link, nil
}

// QRImage fetches the QR PNG encoding the record's share link.
func (s *Content) QRImage(ctx context.Context, id string, q url.Values) ([]byte, error) {
	_, link, err := s.link(ctx, id, q)
	if err != nil {
		return nil, err
	}
	return s.qr.Fetch(ctx, link)
}

func (s *Content) Social(ctx context.Context, id string, q url.Values) ([]deliver.Link, error) {
	rec, link, err := s.link(ctx, id, q)
	if err != nil {
		return nil, err
	}
	return deliver.SocialLinks(link, rec.UserName), nil
}

// PlainText is the manual copy fallback for the record's content.
func (s *Content) PlainText(ctx context.Context, id string, q url.Values) (string, error) {
	rec, _, err := s.Open(ctx, id, q)
	if err != nil {
		return "", err
	}
	return deliver.PlainText(rec.Content), nil
}

func (s *Content) Stats(html string) domain.Stats {
	return domain.ComputeStats(html)
}

// Format applies one editor command to the [start, end) byte range of html.
func (s *Content) Format(html string, start, end int, c editor.Command) (string, domain.Stats, error) {
	if int64(len(html)) > s.cfg.MaxContentSize {
		return "", domain.Stats{}, domain.ErrContentTooLarge
	}
	c, err := editor.ParseCommand(c.Name, c.Value)
	if err != nil {
		return "", domain.Stats{}, err
	}
	m := editor.NewMarkup(html)
	if err := m.Select(start, end); err != nil {
		return "", domain.Stats{}, err
	}
	var out string
	surface := editor.NewSurface(m, func(h string, _ domain.Stats) { out = h })
	if err := surface.Exec(c); err != nil {
		return "", domain.Stats{}, err
	}
	return out, domain.ComputeStats(out), nil
}
