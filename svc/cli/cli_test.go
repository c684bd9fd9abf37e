package cli

import (
	"bytes"
	"context"
	"crosssync/cfg"
	"crosssync/pkg/domain"
	"crosssync/svc/api"
	"crosssync/svc/cache"
	"crosssync/svc/db"
	"crosssync/svc/deliver"
	"crosssync/svc/lim"
	"crosssync/svc/persist"
	"crosssync/svc/qr"
	"crosssync/svc/share"
	"crosssync/svc/svc"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClipboard struct {
	mu   sync.Mutex
	text []string
	fail bool
}

func (f *fakeClipboard) WriteText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("no display")
	}
	f.text = append(f.text, text)
	return nil
}

type harness struct {
	t      *testing.T
	server string
	cfg    string
	clip   *fakeClipboard
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	qrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\x89PNG"))
	}))
	t.Cleanup(qrSrv.Close)
	durable, err := db.NewSQLiteWithConfig(fmt.Sprintf("file:cli%d?mode=memory&cache=shared", time.Now().UnixNano()), 4, 2, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { durable.Close() })
	session, err := cache.NewLRU(100, time.Hour)
	require.NoError(t, err)

	ts := httptest.NewUnstartedServer(nil)
	c := &cfg.Cfg{
		Port:           "0",
		BaseURL:        "http://" + ts.Listener.Addr().String(),
		MaxContentSize: 16384,
		ContextTimeout: 5 * time.Second,
		ExportWidth:    80,
		HandoffTTL:     time.Minute,
		RateLimit:      cfg.RateLimitCfg{RPM: 10000, Burst: 10000, ConservativeLimit: 10000},
	}
	shim := persist.NewShim(durable, session)
	r := qr.New(qr.Config{Endpoint: qrSrv.URL, Timeout: time.Second})
	r.Client().RetryMax = 0
	content := svc.NewContent(shim, r, c)
	l := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, c.RateLimit.ConservativeLimit, nil, nil)
	t.Cleanup(l.Stop)
	ts.Config.Handler = api.NewServer(c, content, l, shim)
	ts.Start()
	t.Cleanup(ts.Close)

	return &harness{
		t:      t,
		server: ts.URL,
		cfg:    filepath.Join(t.TempDir(), "crosssync.yml"),
		clip:   &fakeClipboard{},
		now:    time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

// run executes the CLI and returns stdout and stderr.
func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(Env{
		In:        strings.NewReader(stdin),
		Out:       &out,
		Err:       &errOut,
		Clipboard: h.clip,
		Now:       func() time.Time { return h.now },
	})
	root.SetArgs(append([]string{"--config", h.cfg, "--server", h.server}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func (h *harness) share(content string, args ...string) string {
	h.t.Helper()
	out, _, err := h.run(content, append([]string{"share", "--no-copy"}, args...)...)
	require.NoError(h.t, err)
	return strings.TrimSpace(out)
}

func TestShareFromStdinCopiesLink(t *testing.T) {
	h := newHarness(t)
	out, errOut, err := h.run("hello from the terminal", "share", "-u", "ana")
	require.NoError(t, err)
	link := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(link, h.server+share.PathPrefix), link)
	assert.Contains(t, errOut, "copied")
	require.Len(t, h.clip.text, 1)
	assert.Equal(t, link, h.clip.text[0])

	rec, err := share.Decode(link)
	require.NoError(t, err)
	assert.Equal(t, "hello from the terminal", rec.Content)
	assert.Equal(t, "ana", rec.UserName)
}

func TestShareClipboardFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.clip.fail = true
	out, errOut, err := h.run("text", "share")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
	assert.Contains(t, errOut, "copy the link above")
}

func TestShareEmptyInput(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("  \n ", "share", "--no-copy")
	assert.True(t, errors.Is(err, domain.ErrContentRequired))
}

func TestShareMarkdownFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n\nbuy **milk**\n"), 0o644))
	link := h.share("", path)
	rec, err := share.Decode(link)
	require.NoError(t, err)
	assert.Contains(t, rec.Content, "<h1")
	assert.Contains(t, rec.Content, "<strong>milk</strong>")
	assert.Equal(t, 3, rec.WordCount)
}

func TestShareJSONAndQR(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("x y", "share", "--no-copy", "--json")
	require.NoError(t, err)
	var res api.ShareResp
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 2, res.Content.WordCount)

	out, _, err = h.run("x y", "share", "--no-copy", "--qr")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.NotEqual(t, lines[0], lines[1])
}

func TestOpenDecodesLocallyAndFallsBack(t *testing.T) {
	h := newHarness(t)
	link := h.share("<p>first</p><p>second</p>")

	out, errOut, err := h.run("", "open", link)
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond\n", out)
	assert.Contains(t, errOut, share.SourceURL)

	out, _, err = h.run("", "open", "--html", link)
	require.NoError(t, err)
	assert.Equal(t, "<p>first</p><p>second</p>\n", out)

	rec, err := share.Decode(link)
	require.NoError(t, err)
	bare := h.server + share.PathPrefix + rec.ID
	out, _, err = h.run("", "open", "--json", bare)
	require.NoError(t, err)
	var view struct {
		Content domain.SharedContent `json:"content"`
		Source  string               `json:"source"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, rec.ID, view.Content.ID)
	assert.NotEqual(t, share.SourceURL, view.Source)
}

func TestOpenUnknownLink(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "open", h.server+share.PathPrefix+"nope")
	assert.True(t, errors.Is(err, domain.ErrContentNotFound))
}

func TestUpdateReplacesContent(t *testing.T) {
	h := newHarness(t)
	link := h.share("draft")
	out, _, err := h.run("final words", "update", "--no-copy", link)
	require.NoError(t, err)
	rec, err := share.Decode(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "final words", rec.Content)
	assert.NotNil(t, rec.UpdatedAt)
}

func TestExportWritesFile(t *testing.T) {
	h := newHarness(t)
	link := h.share(strings.Repeat("word ", 30), "-u", "ana")
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")

	_, errOut, err := h.run("", "export", "-o", target, "--width", "20", link)
	require.NoError(t, err)
	assert.Contains(t, errOut, target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Author: ana")
	assert.Contains(t, text, h.server)
	for _, ln := range strings.Split(text, "\n") {
		if strings.HasPrefix(ln, "word") {
			assert.LessOrEqual(t, len(ln), 20)
		}
	}

	out, _, err := h.run("", "export", "-o", "-", link)
	require.NoError(t, err)
	assert.Contains(t, out, "Page 1 of 1")
}

func TestExportDefaultFilename(t *testing.T) {
	h := newHarness(t)
	link := h.share("hello", "-u", "ana")
	dir := t.TempDir()
	t.Chdir(dir)

	_, _, err := h.run("", "export", link)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "CrossSync_ana_2026-03-04.txt"))
	assert.NoError(t, err)
}

func TestSocialLinks(t *testing.T) {
	h := newHarness(t)
	link := h.share("hi", "-u", "ana")

	out, _, err := h.run("", "social", link)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(deliver.Platforms))
	assert.True(t, strings.HasPrefix(lines[0], "WhatsApp"))

	out, _, err = h.run("", "social", "--platform", "telegram", "--json", link)
	require.NoError(t, err)
	var links []deliver.Link
	require.NoError(t, json.Unmarshal([]byte(out), &links))
	require.Len(t, links, 1)
	assert.Equal(t, "Telegram", links[0].Name)
	assert.Contains(t, links[0].URL, share.EscapeComponent("by ana"))

	_, _, err = h.run("", "social", "--platform", "myspace", link)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestConfigInitAndShow(t *testing.T) {
	h := newHarness(t)
	t.Setenv("CROSSSYNC_USER", "env-user")

	out, _, err := h.run("", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, h.cfg)

	_, _, err = h.run("", "config", "init")
	assert.Error(t, err)
	_, _, err = h.run("", "config", "init", "--force")
	assert.NoError(t, err)

	loaded, err := LoadConfig(h.cfg)
	require.NoError(t, err)
	assert.Equal(t, h.server, loaded.Server)
	assert.Equal(t, "env-user", loaded.User)

	out, _, err = h.run("", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "user: env-user")
	assert.Contains(t, out, "timeout: 10s")
}
