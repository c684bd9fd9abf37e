package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindStorageUnavailable Kind = "storage_unavailable"
	KindMalformedPayload   Kind = "malformed_payload"
	KindExternalService    Kind = "external_service"
	KindClipboard          Kind = "clipboard"
	KindExport             Kind = "export"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindInternal           Kind = "internal"
)

var (
	ErrContentNotFound   = NewErr("CONTENT_NOT_FOUND", "content not found", http.StatusNotFound, KindNotFound)
	ErrContentRequired   = NewErr("CONTENT_REQUIRED", "content required", http.StatusBadRequest, KindInvalidInput)
	ErrContentTooLarge   = NewErr("CONTENT_TOO_LARGE", "content too large", http.StatusRequestEntityTooLarge, KindInvalidInput)
	ErrInvalidRequest    = NewErr("INVALID_REQUEST", "invalid request", http.StatusBadRequest, KindInvalidInput)
	ErrUnsupportedMedia  = NewErr("UNSUPPORTED_MEDIA_TYPE", "expected Content-Type: application/json", http.StatusUnsupportedMediaType, KindInvalidInput)
	ErrInvalidCommand    = NewErr("INVALID_COMMAND", "unknown formatting command", http.StatusBadRequest, KindInvalidInput)
	ErrPayloadMissing    = NewErr("PAYLOAD_MISSING", "share payload missing", http.StatusNotFound, KindNotFound)
	ErrMalformedPayload  = NewErr("MALFORMED_PAYLOAD", "malformed share payload", http.StatusNotFound, KindMalformedPayload)
	ErrStoreUnavailable  = NewErr("STORE_UNAVAILABLE", "storage unavailable", http.StatusServiceUnavailable, KindStorageUnavailable)
	ErrExternalService   = NewErr("EXTERNAL_SERVICE", "external service failed", http.StatusBadGateway, KindExternalService)
	ErrClipboard         = NewErr("CLIPBOARD_UNAVAILABLE", "clipboard unavailable, copy manually", http.StatusServiceUnavailable, KindClipboard)
	ErrExportFailed      = NewErr("EXPORT_FAILED", "export failed", http.StatusInternalServerError, KindExport)
	ErrHandoffNotFound   = NewErr("HANDOFF_NOT_FOUND", "nothing to edit", http.StatusNotFound, KindNotFound)
	ErrRateLimitExceeded = NewErr("RATE_LIMIT_EXCEEDED", "rate limit exceeded", http.StatusTooManyRequests, KindInvalidInput)
	ErrInternalServer    = NewErr("INTERNAL_ERROR", "internal error", http.StatusInternalServerError, KindInternal)
)

type Err struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Status int    `json:"-"`
	Kind   Kind   `json:"-"`
}

func (e *Err) Error() string { return e.Msg }

func NewErr(code, msg string, status int, kind Kind) *Err {
	return &Err{Code: code, Msg: msg, Status: status, Kind: kind}
}

type ErrResp struct {
	Error ErrDetail `json:"error"`
}
type ErrDetail struct {
	Code string                 `json:"code"`
	Msg  string                 `json:"message"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

func asErr(err error) (*Err, bool) {
	var e *Err
	if errors.As(err, &e) {
		return e, true
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return e, true
	}
	return nil, false
}

func ToResp(err error) ErrResp {
	if e, ok := asErr(err); ok {
		return ErrResp{Error: ErrDetail{Code: e.Code, Msg: e.Msg}}
	}
	return ErrResp{Error: ErrDetail{Code: "INTERNAL_ERROR", Msg: "internal error"}}
}

func Status(err error) int {
	if e, ok := asErr(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}

// KindOf classifies err for fallback decisions. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := asErr(err); ok {
		return e.Kind
	}
	return KindInternal
}
