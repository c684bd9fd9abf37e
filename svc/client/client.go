// Package client talks to a CrossSync server over its JSON API.
package client

import (
	"bytes"
	"context"
	"crosssync/pkg/domain"
	"crosssync/svc/api"
	"crosssync/svc/share"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const maxResponseBytes = 8 << 20

// APIError is a non-2xx answer from the server. It matches the domain
// sentinel with the same code under errors.Is.
type APIError struct {
	Status    int
	Code      string
	Msg       string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s (%d %s, request %s)", e.Msg, e.Status, e.Code, e.RequestID)
	}
	return fmt.Sprintf("%s (%d %s)", e.Msg, e.Status, e.Code)
}

func (e *APIError) Is(target error) bool {
	var de *domain.Err
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

type Client struct {
	base string
	http *retryablehttp.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.RetryWaitMin = 200 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = timeout
	hc.Logger = nil
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// HTTP exposes the retrying client for tuning.
func (c *Client) HTTP() *retryablehttp.Client { return c.http }

func (c *Client) Share(ctx context.Context, content, userName string) (*api.ShareResp, error) {
	var out api.ShareResp
	if err := c.doJSON(ctx, http.MethodPost, "/api/shares", api.ShareReq{Content: content, UserName: userName}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the content behind link and returns the re-encoded share.
func (c *Client) Update(ctx context.Context, link, content string) (*api.ShareResp, error) {
	target, err := apiTarget(link, "")
	if err != nil {
		return nil, err
	}
	var out api.ShareResp
	if err := c.doJSON(ctx, http.MethodPut, target, api.StatsReq{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Open asks the server to resolve link, which consults storage when the
// link carries no usable payload.
func (c *Client) Open(ctx context.Context, link string) (*domain.SharedContent, string, error) {
	target, err := apiTarget(link, "")
	if err != nil {
		return nil, "", err
	}
	var out api.ViewResp
	if err := c.doJSON(ctx, http.MethodGet, target, nil, &out); err != nil {
		return nil, "", err
	}
	return out.Content, out.Source, nil
}

// Export downloads the rendered text document and its suggested file name.
func (c *Client) Export(ctx context.Context, link string) ([]byte, string, error) {
	target, err := apiTarget(link, "/export")
	if err != nil {
		return nil, "", err
	}
	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", errors.Wrap(err, "read export")
	}
	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	return body, name, nil
}

func (c *Client) doJSON(ctx context.Context, method, target string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(buf)
	}
	resp, err := c.do(ctx, method, target, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(domain.ErrExternalService, err.Error())
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Msg: http.StatusText(resp.StatusCode)}
	var payload map[string]string
	if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil {
		if payload["code"] != "" {
			apiErr.Code = payload["code"]
		}
		if payload["error"] != "" {
			apiErr.Msg = payload["error"]
		}
		apiErr.RequestID = payload["request_id"]
	}
	return nil, apiErr
}

// apiTarget maps a share link onto /api/shares/{id}{suffix}, keeping its payload.
func apiTarget(link, suffix string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", errors.Wrap(domain.ErrInvalidRequest, err.Error())
	}
	id, ok := share.IDFromPath(u.EscapedPath())
	if !ok {
		if i := strings.LastIndex(u.Path, share.PathPrefix); i >= 0 {
			id, ok = share.IDFromPath(u.Path[i:])
		}
	}
	if !ok {
		return "", errors.Wrapf(domain.ErrInvalidRequest, "not a share link: %s", link)
	}
	target := "/api/shares/" + url.PathEscape(id) + suffix
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target, nil
}
