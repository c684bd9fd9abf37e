// Package share turns a SharedContent record into a self-describing link and back.
//
// A link has the shape <base>/shared/<id>?data=<escaped JSON record>. The
// embedded record is the primary transport; storage is only consulted when
// the payload is absent or unreadable.
package share

import (
	"crosssync/pkg/domain"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	DataParam  = "data"
	PathPrefix = "/shared/"
)

// componentMarks undoes QueryEscape for the marks encodeURIComponent leaves
// alone, and spells spaces as %20.
var componentMarks = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeComponent escapes s exactly as browsers' encodeURIComponent does.
func EscapeComponent(s string) string {
	return componentMarks.Replace(url.QueryEscape(s))
}

func Encode(rec *domain.SharedContent, baseURL string) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", errors.Wrap(domain.ErrInvalidRequest, "record without id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(err, "marshal shared content")
	}
	return strings.TrimRight(baseURL, "/") + PathPrefix + url.PathEscape(rec.ID) +
		"?" + DataParam + "=" + EscapeComponent(string(data)), nil
}

// Decode extracts the record embedded in a share link.
func Decode(rawURL string) (*domain.SharedContent, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformedPayload, err.Error())
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, errors.Wrap(domain.ErrMalformedPayload, err.Error())
	}
	return DecodeQuery(q)
}

func DecodeQuery(q url.Values) (*domain.SharedContent, error) {
	raw := q.Get(DataParam)
	if raw == "" {
		return nil, domain.ErrPayloadMissing
	}
	var rec domain.SharedContent
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, errors.Wrap(domain.ErrMalformedPayload, err.Error())
	}
	return &rec, nil
}

// IDFromPath returns the id segment of a /shared/<id> path.
func IDFromPath(p string) (string, bool) {
	if !strings.HasPrefix(p, PathPrefix) {
		return "", false
	}
	id, err := url.PathUnescape(strings.TrimPrefix(p, PathPrefix))
	if err != nil || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
