package cli

import (
	"crosssync/pkg/domain"
	"crosssync/svc/api"
	"crosssync/svc/deliver"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newShareCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share [file]",
		Short: "Share a file (or stdin) and print its link",
		Long: `Uploads the content and prints the share link. Markdown files (.md) are
rendered to rich text first; use --markdown for markdown on stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShare(cmd, args)
		},
	}
	cmd.Flags().StringP("user", "u", "", "author name (overrides config)")
	cmd.Flags().BoolP("markdown", "m", false, "treat input as markdown")
	cmd.Flags().Bool("no-copy", false, "do not copy the link to the clipboard")
	cmd.Flags().Bool("qr", false, "also print the QR image URL")
	cmd.Flags().Bool("json", false, "print the full response as JSON")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <link> [file]",
		Short: "Replace the content behind a link and print the new link",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := a.readContent(cmd, args[1:])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			res, err := a.client().Update(ctx, args[0], content)
			if err != nil {
				return err
			}
			return a.printShare(cmd, res)
		},
	}
	cmd.Flags().BoolP("markdown", "m", false, "treat input as markdown")
	cmd.Flags().Bool("no-copy", false, "do not copy the link to the clipboard")
	cmd.Flags().Bool("qr", false, "also print the QR image URL")
	cmd.Flags().Bool("json", false, "print the full response as JSON")
	return cmd
}

func (a *app) runShare(cmd *cobra.Command, args []string) error {
	content, err := a.readContent(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return domain.ErrContentRequired
	}
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		user = a.cfg.User
	}
	ctx, cancel := a.context(cmd)
	defer cancel()
	res, err := a.client().Share(ctx, content, user)
	if err != nil {
		return err
	}
	return a.printShare(cmd, res)
}

// readContent reads args[0], or stdin when it is absent or "-".
func (a *app) readContent(cmd *cobra.Command, args []string) (string, error) {
	var (
		raw  []byte
		err  error
		name string
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		name = args[0]
		raw, err = os.ReadFile(name)
	}
	if err != nil {
		return "", errors.Wrap(err, "read content")
	}
	md, _ := cmd.Flags().GetBool("markdown")
	if md || isMarkdownFile(name) {
		return MarkdownToHTML(raw)
	}
	return string(raw), nil
}

func (a *app) printShare(cmd *cobra.Command, res *api.ShareResp) error {
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, res.URL)
	if qr, _ := cmd.Flags().GetBool("qr"); qr {
		fmt.Fprintln(out, res.QRURL)
	}
	if noCopy, _ := cmd.Flags().GetBool("no-copy"); noCopy || !a.cfg.Copy {
		return nil
	}
	ctx, cancel := a.context(cmd)
	defer cancel()
	if _, err := deliver.CopyText(ctx, res.URL, a.env.Clipboard); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "clipboard unavailable, copy the link above")
		return nil
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "link copied to clipboard")
	return nil
}
