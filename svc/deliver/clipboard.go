package deliver

import (
	"context"
	"crosssync/pkg/domain"
	"crosssync/svc/util"

	"github.com/pkg/errors"
)

type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// ClipboardFunc adapts a function to Clipboard.
type ClipboardFunc func(ctx context.Context, text string) error

func (f ClipboardFunc) WriteText(ctx context.Context, text string) error { return f(ctx, text) }

type CopyOutcome struct {
	Copied bool   `json:"copied"`
	Manual string `json:"manual,omitempty"`
}

// CopyText tries each clipboard in order. When all of them fail the outcome
// carries the text for manual copying along with a clipboard error.
func CopyText(ctx context.Context, text string, clips ...Clipboard) (CopyOutcome, error) {
	var last error
	for _, c := range clips {
		if c == nil {
			continue
		}
		err := c.WriteText(ctx, text)
		if err == nil {
			return CopyOutcome{Copied: true}, nil
		}
		last = err
		util.Debug().Err(err).Msg("clipboard write failed, trying next")
	}
	if last == nil {
		return CopyOutcome{Manual: text}, errors.Wrap(domain.ErrClipboard, "no clipboard available")
	}
	return CopyOutcome{Manual: text}, errors.Wrap(domain.ErrClipboard, last.Error())
}

type ShareData struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

type ShareSheet interface {
	CanShare(d ShareData) bool
	Share(ctx context.Context, d ShareData) error
}

type ShareOutcome struct {
	Native bool   `json:"native"`
	Links  []Link `json:"links,omitempty"`
}

// NativeShare uses the platform sheet when it accepts the data and falls
// back to the social link list otherwise.
func NativeShare(ctx context.Context, sheet ShareSheet, shareURL, userName string) ShareOutcome {
	d := ShareData{
		Title: "CrossSync Content",
		Text:  "Content shared by " + userName,
		URL:   shareURL,
	}
	if sheet != nil && sheet.CanShare(d) {
		err := sheet.Share(ctx, d)
		if err == nil {
			return ShareOutcome{Native: true}
		}
		util.Warn().Err(err).Msg("native share failed")
	}
	return ShareOutcome{Links: SocialLinks(shareURL, userName)}
}
