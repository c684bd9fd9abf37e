// Package export renders shared content as a paginated plain-text document.
package export

import (
	"crosssync/pkg/domain"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const (
	Title    = "CrossSync"
	Subtitle = "Beautiful cross-platform content sharing"
)

// Layout positions lines on a page in abstract vertical units.
type Layout struct {
	Width      int
	Start      int
	LineHeight int
	PageHeight int
	NewPage    int
}

var DefaultLayout = Layout{Width: 80, Start: 75, LineHeight: 6, PageHeight: 280, NewPage: 20}

var (
	brRe     = regexp.MustCompile(`(?i)<br\s*/?>`)
	pCloseRe = regexp.MustCompile(`(?i)</p>`)
	pOpenRe  = regexp.MustCompile(`(?i)<p[^>]*>`)
	entities = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`)
)

type Document struct {
	Author  string
	Created time.Time
	Stats   domain.Stats
	Origin  string
	Pages   [][]string
}

// ToText maps block markup to line breaks, strips the rest and decodes the
// common entities.
func ToText(html string) string {
	s := brRe.ReplaceAllString(html, "\n")
	s = pCloseRe.ReplaceAllString(s, "\n\n")
	s = pOpenRe.ReplaceAllString(s, "")
	s = domain.StripTags(s)
	s = entities.Replace(s)
	return norm.NFC.String(strings.TrimSpace(s))
}

// Wrap breaks text into lines of at most width runes. Explicit newlines are
// kept; words longer than width are split.
func Wrap(text string, width int) []string {
	if width <= 0 {
		width = DefaultLayout.Width
	}
	if text == "" {
		return nil
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		var line strings.Builder
		n := 0
		for _, w := range words {
			wl := utf8.RuneCountInString(w)
			for wl > width {
				if n > 0 {
					out = append(out, line.String())
					line.Reset()
					n = 0
				}
				r := []rune(w)
				out = append(out, string(r[:width]))
				w = string(r[width:])
				wl -= width
			}
			if wl == 0 {
				continue
			}
			if n > 0 && n+1+wl > width {
				out = append(out, line.String())
				line.Reset()
				n = 0
			}
			if n > 0 {
				line.WriteByte(' ')
				n++
			}
			line.WriteString(w)
			n += wl
		}
		if n > 0 {
			out = append(out, line.String())
		}
	}
	return out
}

// Paginate places lines on pages, starting a new page before any line whose
// offset would exceed the page height. There is always at least one page.
func Paginate(lines []string, l Layout) [][]string {
	pages := [][]string{{}}
	y := l.Start
	for _, ln := range lines {
		if y > l.PageHeight {
			pages = append(pages, []string{})
			y = l.NewPage
		}
		pages[len(pages)-1] = append(pages[len(pages)-1], ln)
		y += l.LineHeight
	}
	return pages
}

func Project(rec *domain.SharedContent, origin string, l Layout) (*Document, error) {
	if rec == nil {
		return nil, errors.Wrap(domain.ErrExportFailed, "nothing to export")
	}
	return &Document{
		Author:  rec.UserName,
		Created: rec.CreatedAt,
		Stats:   rec.Stats(),
		Origin:  origin,
		Pages:   Paginate(Wrap(ToText(rec.Content), l.Width), l),
	}, nil
}

func (d *Document) Render(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("-", 40)
	b.WriteString(Title + "\n" + Subtitle + "\n" + rule + "\n")
	b.WriteString("Author: " + d.Author + "\n")
	b.WriteString("Created: " + d.Created.Format("2006-01-02") + "\n")
	b.WriteString("Words: " + strconv.Itoa(d.Stats.WordCount) + " | Characters: " + strconv.Itoa(d.Stats.CharCount) + "\n")
	b.WriteString(rule + "\n\n")
	n := len(d.Pages)
	for i, page := range d.Pages {
		if i > 0 {
			b.WriteString("\f")
		}
		for _, ln := range page {
			b.WriteString(ln + "\n")
		}
		b.WriteString("\nGenerated by CrossSync - Page " + strconv.Itoa(i+1) + " of " + strconv.Itoa(n))
		if d.Origin != "" {
			b.WriteString("  " + d.Origin)
		}
		b.WriteString("\n")
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Wrap(domain.ErrExportFailed, err.Error())
	}
	return nil
}

// Filename names the export after its author and the export date.
func Filename(rec *domain.SharedContent, now time.Time) string {
	user := "anonymous"
	if rec != nil && rec.UserName != "" {
		user = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
				return r
			}
			return '_'
		}, rec.UserName)
	}
	return "CrossSync_" + user + "_" + now.UTC().Format("2006-01-02") + ".txt"
}
