package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultUserName = "anonymous"
	storagePrefix   = "shared_"
	handoffPrefix   = "crosssync-edit-content_"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

type SharedContent struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	UserName  string     `json:"userName"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	WordCount int        `json:"wordCount"`
	CharCount int        `json:"charCount"`
}

type Stats struct {
	WordCount int `json:"wordCount"`
	CharCount int `json:"charCount"`
}

// EditHandoff carries content from a shared view back into the primary editor.
type EditHandoff struct {
	Content    string `json:"content"`
	UserName   string `json:"userName"`
	FromShared bool   `json:"fromShared"`
	SharedID   string `json:"sharedId"`
}

type ShareParams struct {
	Content  string
	UserName string
}

// StripTags removes every <...> run. Entities are left encoded.
func StripTags(html string) string {
	return tagPattern.ReplaceAllString(html, "")
}

func ComputeStats(html string) Stats {
	text := strings.TrimSpace(StripTags(html))
	if text == "" {
		return Stats{}
	}
	return Stats{
		WordCount: len(strings.Fields(text)),
		CharCount: utf8.RuneCountInString(text),
	}
}

func NewSharedContent(id, html, userName string, now time.Time) *SharedContent {
	if strings.TrimSpace(userName) == "" {
		userName = DefaultUserName
	}
	st := ComputeStats(html)
	return &SharedContent{
		ID:        id,
		Content:   html,
		UserName:  userName,
		CreatedAt: Timestamp(now),
		WordCount: st.WordCount,
		CharCount: st.CharCount,
	}
}

// ApplyEdit replaces the content and refreshes both counts and UpdatedAt.
func (c *SharedContent) ApplyEdit(html string, now time.Time) {
	st := ComputeStats(html)
	ts := Timestamp(now)
	c.Content = html
	c.WordCount = st.WordCount
	c.CharCount = st.CharCount
	c.UpdatedAt = &ts
}

func (c *SharedContent) Stats() Stats {
	return Stats{WordCount: c.WordCount, CharCount: c.CharCount}
}

// Timestamp matches the millisecond UTC precision of ISO-8601 strings produced by browsers.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func StorageKey(id string) string {
	return storagePrefix + id
}

func HandoffKey(token string) string {
	return handoffPrefix + token
}
