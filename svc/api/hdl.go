package api

import (
	"bytes"
	"crosssync/cfg"
	"crosssync/pkg/domain"
	"crosssync/svc/editor"
	"crosssync/svc/svc"
	"crosssync/svc/util"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

type Hdl struct {
	content *svc.Content
	cfg     *cfg.Cfg
}

type ShareReq struct {
	Content  string `json:"content"`
	UserName string `json:"userName,omitempty"`
}
type ShareResp struct {
	ID      string                `json:"id"`
	URL     string                `json:"url"`
	QRURL   string                `json:"qrUrl"`
	Content *domain.SharedContent `json:"content"`
}
type ViewResp struct {
	Content *domain.SharedContent `json:"content"`
	Source  string                `json:"source"`
}
type HandoffResp struct {
	Token string `json:"token"`
}
type TakeHandoffResp struct {
	*domain.EditHandoff
	domain.Stats
}
type StatsReq struct {
	Content string `json:"content"`
}
type FormatReq struct {
	Content string `json:"content"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Command string `json:"command"`
	Value   string `json:"value,omitempty"`
}
type FormatResp struct {
	Content string `json:"content"`
	domain.Stats
}

func (h *Hdl) CreateShare(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	var req ShareReq
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, err, requestID)
		return
	}
	res, err := h.content.Share(r.Context(), domain.ShareParams{
		Content:  sanitizeContent(req.Content),
		UserName: sanitizeContent(strings.TrimSpace(req.UserName)),
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("share failed")
		writeErr(w, err, requestID)
		return
	}
	log.Info().
		Str("id", res.Record.ID).
		Int("words", res.Record.WordCount).
		Strs("stores", res.Saved).
		Msg("share created")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ShareResp{ID: res.Record.ID, URL: res.URL, QRURL: res.QRURL, Content: res.Record})
}

func (h *Hdl) GetShare(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	rec, src, err := h.content.Open(r.Context(), id, r.URL.Query())
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("open failed")
		writeErr(w, err, requestID)
		return
	}
	log.Debug().Str("id", id).Str("source", src).Msg("share opened")
	writeTagged(w, r, ViewResp{Content: rec, Source: src})
}

func (h *Hdl) UpdateShare(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	var req StatsReq
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, err, requestID)
		return
	}
	res, err := h.content.SaveEdit(r.Context(), id, r.URL.Query(), sanitizeContent(req.Content))
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("save edit failed")
		writeErr(w, err, requestID)
		return
	}
	log.Info().Str("id", id).Strs("stores", res.Saved).Msg("share edited")
	json.NewEncoder(w).Encode(ShareResp{ID: res.Record.ID, URL: res.URL, QRURL: res.QRURL, Content: res.Record})
}

func (h *Hdl) GetQR(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	img, err := h.content.QRImage(r.Context(), id, r.URL.Query())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("id", id).Msg("qr image failed")
		writeErr(w, err, requestID)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(img)
}

func (h *Hdl) Export(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	doc, name, err := h.content.Export(r.Context(), id, r.URL.Query())
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		writeErr(w, err, requestID)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Write(buf.Bytes())
}

func (h *Hdl) PlainText(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	text, err := h.content.PlainText(r.Context(), chi.URLParam(r, "id"), r.URL.Query())
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, text)
}

func (h *Hdl) Social(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	links, err := h.content.Social(r.Context(), chi.URLParam(r, "id"), r.URL.Query())
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	writeTagged(w, r, links)
}

func (h *Hdl) CreateHandoff(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	id := chi.URLParam(r, "id")
	token, err := h.content.Handoff(r.Context(), id, r.URL.Query())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("id", id).Msg("handoff failed")
		writeErr(w, err, requestID)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(HandoffResp{Token: token})
}

func (h *Hdl) TakeHandoff(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	ho, st, err := h.content.TakeHandoff(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(TakeHandoffResp{EditHandoff: ho, Stats: st})
}

func (h *Hdl) EditorStats(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	var req StatsReq
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(h.content.Stats(req.Content))
}

func (h *Hdl) EditorFormat(w http.ResponseWriter, r *http.Request) {
	requestID := util.GetRequestID(r.Context())
	var req FormatReq
	if err := h.decode(w, r, &req); err != nil {
		writeErr(w, err, requestID)
		return
	}
	out, st, err := h.content.Format(req.Content, req.Start, req.End, editor.Command{Name: req.Command, Value: req.Value})
	if err != nil {
		writeErr(w, err, requestID)
		return
	}
	json.NewEncoder(w).Encode(FormatResp{Content: out, Stats: st})
}

// decode reads a JSON body bounded by the content limit plus envelope room.
func (h *Hdl) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	log := hlog.FromRequest(r)
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		log.Warn().Str("content_type", contentType).Msg("invalid Content-Type header")
		return domain.ErrUnsupportedMedia
	}
	if ce := r.Header.Get("Content-Encoding"); ce != "" && ce != "identity" {
		log.Warn().Str("content_encoding", ce).Msg("compressed content not allowed")
		return domain.ErrInvalidRequest
	}
	limit := h.cfg.MaxContentSize*2 + 4096
	if r.ContentLength > limit {
		log.Warn().Int64("content_length", r.ContentLength).Msg("Content-Length exceeds maximum")
		return domain.ErrContentTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return domain.ErrContentTooLarge
		}
		if err == io.EOF {
			log.Warn().Msg("empty request body")
		} else {
			log.Warn().Err(err).Msg("invalid request")
		}
		return domain.ErrInvalidRequest
	}
	return nil
}

func writeErr(w http.ResponseWriter, err error, requestID string) {
	statusCode := domain.Status(err)
	resp := domain.ToResp(err)
	errorMsg := resp.Error.Msg
	if statusCode >= 500 && domain.KindOf(err) == domain.KindInternal {
		errorMsg = "internal server error"
		util.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("internal error with detailed info")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      errorMsg,
		"code":       resp.Error.Code,
		"request_id": requestID,
	})
}

// writeTagged writes v as JSON with a content-hash ETag and honours If-None-Match.
func writeTagged(w http.ResponseWriter, r *http.Request, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeErr(w, domain.ErrInternalServer, util.GetRequestID(r.Context()))
		return
	}
	sum := blake2b.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Write(append(body, '\n'))
}

// sanitizeContent normalizes to NFC and drops invalid UTF-8 and control
// characters other than line breaks and tabs. Markup is kept as-is.
func sanitizeContent(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
