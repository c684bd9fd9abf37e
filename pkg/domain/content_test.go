package domain

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestComputeStats(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		words int
		chars int
	}{
		{"empty", "", 0, 0},
		{"only tags", "<p></p><br/>", 0, 0},
		{"whitespace", "  <p>   </p>\n\t", 0, 0},
		{"nested markup", "<p>Hello <b>world</b></p>", 2, 11},
		{"runs of whitespace", "<div>one   two\n\nthree</div>", 3, 16},
		{"entities not decoded", "<p>a&nbsp;b</p>", 1, 8},
		{"multibyte", "<p>héllo wörld</p>", 2, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ComputeStats(tt.html)
			if st.WordCount != tt.words {
				t.Errorf("WordCount = %d, want %d", st.WordCount, tt.words)
			}
			if st.CharCount != tt.chars {
				t.Errorf("CharCount = %d, want %d", st.CharCount, tt.chars)
			}
		})
	}
}

func TestComputeStatsZeroWordsIffEmptyText(t *testing.T) {
	inputs := []string{"", "<b></b>", " x ", "<i>a</i> <i>b</i>", "<<>>", "< p >text"}
	for _, in := range inputs {
		st := ComputeStats(in)
		empty := strings.TrimSpace(StripTags(in)) == ""
		if (st.WordCount == 0) != empty {
			t.Errorf("input %q: words=%d, stripped empty=%v", in, st.WordCount, empty)
		}
	}
}

func TestNewSharedContentDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.FixedZone("X", 3600))
	c := NewSharedContent("abc123", "<p>Hi</p>", "  ", now)
	if c.UserName != DefaultUserName {
		t.Errorf("UserName = %q, want %q", c.UserName, DefaultUserName)
	}
	if c.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt should be UTC, got %v", c.CreatedAt.Location())
	}
	if c.CreatedAt.Nanosecond() != 123000000 {
		t.Errorf("CreatedAt should be truncated to ms, got %d", c.CreatedAt.Nanosecond())
	}
	if c.UpdatedAt != nil {
		t.Error("UpdatedAt must be unset at creation")
	}
	if c.WordCount != 1 || c.CharCount != 2 {
		t.Errorf("stats = %d/%d, want 1/2", c.WordCount, c.CharCount)
	}
}

func TestApplyEdit(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSharedContent("abc123", "<p>Hi</p>", "Ann", created)
	edited := created.Add(time.Hour)
	c.ApplyEdit("<p>Hello there world</p>", edited)
	if c.ID != "abc123" {
		t.Errorf("ID changed: %s", c.ID)
	}
	if !c.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v", c.CreatedAt)
	}
	if c.UpdatedAt == nil || !c.UpdatedAt.Equal(edited) {
		t.Errorf("UpdatedAt = %v, want %v", c.UpdatedAt, edited)
	}
	if c.WordCount != 3 || c.CharCount != 17 {
		t.Errorf("stats = %d/%d, want 3/17", c.WordCount, c.CharCount)
	}
}

func TestSharedContentJSONFieldNames(t *testing.T) {
	c := NewSharedContent("abc123", "<p>Hi</p>", "Ann", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, field := range []string{`"id"`, `"content"`, `"userName"`, `"createdAt":"2024-01-01T00:00:00Z"`, `"wordCount"`, `"charCount"`} {
		if !strings.Contains(s, field) {
			t.Errorf("missing %s in %s", field, s)
		}
	}
	if strings.Contains(s, "updatedAt") {
		t.Errorf("updatedAt should be omitted before edit: %s", s)
	}

	var parsed SharedContent
	browser := `{"id":"x","content":"<b>a</b>","userName":"Bo","createdAt":"2024-03-04T05:06:07.890Z","wordCount":1,"charCount":1}`
	if err := json.Unmarshal([]byte(browser), &parsed); err != nil {
		t.Fatalf("browser payload should parse: %v", err)
	}
	if parsed.CreatedAt.Nanosecond() != 890000000 {
		t.Errorf("CreatedAt ms lost: %v", parsed.CreatedAt)
	}
}

func TestKeys(t *testing.T) {
	if got := StorageKey("abc123"); got != "shared_abc123" {
		t.Errorf("StorageKey = %s", got)
	}
	if got := HandoffKey("t1"); got != "crosssync-edit-content_t1" {
		t.Errorf("HandoffKey = %s", got)
	}
}

func TestErrClassification(t *testing.T) {
	wrapped := errors.Wrap(ErrContentNotFound, "load")
	if Status(wrapped) != http.StatusNotFound {
		t.Errorf("Status = %d", Status(wrapped))
	}
	if KindOf(wrapped) != KindNotFound {
		t.Errorf("KindOf = %s", KindOf(wrapped))
	}
	if ToResp(wrapped).Error.Code != "CONTENT_NOT_FOUND" {
		t.Errorf("code = %s", ToResp(wrapped).Error.Code)
	}
	plain := errors.New("boom")
	if Status(plain) != http.StatusInternalServerError || KindOf(plain) != KindInternal {
		t.Error("unknown errors must map to internal")
	}
	if KindOf(nil) != "" {
		t.Error("nil error has no kind")
	}
}
