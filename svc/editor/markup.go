package editor

import (
	"crosssync/pkg/domain"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const maxHistory = 100

// Formatter applies rich-text commands to the current selection of a document.
type Formatter interface {
	Bold() error
	Italic() error
	Underline() error
	Strike() error
	Align(a Align) error
	InsertList(kind ListKind) error
	SetFontFamily(family string) error
	SetFontSize(size string) error
	SetColor(color string) error
	SetBackground(color string) error
	Undo() error
	Redo() error
	// Reset replaces the document, as typing would.
	Reset(html string)
	HTML() string
}

// MarkupFormatter wraps a byte range of an HTML string in inline markup.
// An empty selection covers the whole document. It has no document model:
// the wrapping is textual and nests on repeated commands.
type MarkupFormatter struct {
	mu         sync.Mutex
	html       string
	start, end int
	history    []string
	pos        int
}

func NewMarkup(html string) *MarkupFormatter {
	return &MarkupFormatter{html: html, history: []string{html}}
}

// Select sets the range the next command applies to. Bounds must fall on
// rune boundaries outside of tags.
func (m *MarkupFormatter) Select(start, end int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if start < 0 || end < start || end > len(m.html) {
		return errors.Wrapf(domain.ErrInvalidRequest, "selection %d-%d out of range", start, end)
	}
	for _, p := range []int{start, end} {
		if p < len(m.html) && !utf8.RuneStart(m.html[p]) {
			return errors.Wrapf(domain.ErrInvalidRequest, "selection splits a character at %d", p)
		}
		if insideTag(m.html, p) {
			return errors.Wrapf(domain.ErrInvalidRequest, "selection splits a tag at %d", p)
		}
	}
	m.start, m.end = start, end
	return nil
}

func insideTag(s string, p int) bool {
	return strings.LastIndexByte(s[:p], '<') > strings.LastIndexByte(s[:p], '>')
}

func (m *MarkupFormatter) Bold() error      { return m.wrap("<b>", "</b>") }
func (m *MarkupFormatter) Italic() error    { return m.wrap("<i>", "</i>") }
func (m *MarkupFormatter) Underline() error { return m.wrap("<u>", "</u>") }
func (m *MarkupFormatter) Strike() error    { return m.wrap("<strike>", "</strike>") }

func (m *MarkupFormatter) Align(a Align) error {
	switch a {
	case AlignLeft, AlignCenter, AlignRight, AlignJustify:
	default:
		return errors.Wrapf(domain.ErrInvalidCommand, "alignment %q", a)
	}
	return m.wrap(`<div style="text-align: `+string(a)+`;">`, "</div>")
}

func (m *MarkupFormatter) InsertList(kind ListKind) error {
	if kind != ListUnordered && kind != ListOrdered {
		return errors.Wrapf(domain.ErrInvalidCommand, "list kind %q", kind)
	}
	return m.wrap("<"+string(kind)+"><li>", "</li></"+string(kind)+">")
}

func (m *MarkupFormatter) SetFontFamily(family string) error {
	if !familyRe.MatchString(family) {
		return errors.Wrapf(domain.ErrInvalidCommand, "font family %q", family)
	}
	return m.wrap(`<font face="`+family+`">`, "</font>")
}

func (m *MarkupFormatter) SetFontSize(size string) error {
	n, err := strconv.Atoi(size)
	if err != nil || n < 1 || n > 7 {
		return errors.Wrapf(domain.ErrInvalidCommand, "font size %q", size)
	}
	return m.wrap(`<font size="`+strconv.Itoa(n)+`">`, "</font>")
}

func (m *MarkupFormatter) SetColor(color string) error {
	if !colorRe.MatchString(color) {
		return errors.Wrapf(domain.ErrInvalidCommand, "color %q", color)
	}
	return m.wrap(`<font color="`+color+`">`, "</font>")
}

func (m *MarkupFormatter) SetBackground(color string) error {
	if !colorRe.MatchString(color) {
		return errors.Wrapf(domain.ErrInvalidCommand, "color %q", color)
	}
	return m.wrap(`<span style="background-color: `+color+`;">`, "</span>")
}

func (m *MarkupFormatter) wrap(open, closeTag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start, end := m.start, m.end
	if start == end {
		start, end = 0, len(m.html)
	}
	inner := m.html[start:end]
	m.html = m.html[:start] + open + inner + closeTag + m.html[end:]
	m.start = start + len(open)
	m.end = m.start + len(inner)
	m.record()
	return nil
}

// record drops any redo tail and appends the current document.
func (m *MarkupFormatter) record() {
	m.history = append(m.history[:m.pos+1], m.html)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.pos = len(m.history) - 1
}

// Undo steps back one snapshot. With nothing to undo it is a no-op.
func (m *MarkupFormatter) Undo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos > 0 {
		m.pos--
		m.restore()
	}
	return nil
}

func (m *MarkupFormatter) Redo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos < len(m.history)-1 {
		m.pos++
		m.restore()
	}
	return nil
}

func (m *MarkupFormatter) restore() {
	m.html = m.history[m.pos]
	m.start, m.end = 0, 0
}

func (m *MarkupFormatter) Reset(html string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if html == m.html {
		return
	}
	m.html = html
	m.start, m.end = 0, 0
	m.record()
}

func (m *MarkupFormatter) HTML() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.html
}
