package deliver

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
)

// SystemClipboard writes to the desktop clipboard. It reports an error on
// headless hosts, which CopyText turns into the manual fallback.
var SystemClipboard Clipboard = ClipboardFunc(func(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clipboard.Unsupported {
		return errors.New("system clipboard unsupported")
	}
	return errors.Wrap(clipboard.WriteAll(text), "system clipboard")
})
