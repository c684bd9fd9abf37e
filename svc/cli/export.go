package cli

import (
	"crosssync/svc/export"
	"fmt"
	"net/url"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <link>",
		Short: "Write a share link's content as a paginated text document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			rec, _, err := a.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			layout := export.DefaultLayout
			if w, _ := cmd.Flags().GetInt("width"); w > 0 {
				layout.Width = w
			} else {
				layout.Width = a.cfg.ExportWidth
			}
			doc, err := export.Project(rec, linkOrigin(args[0]), layout)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "-" {
				return doc.Render(cmd.OutOrStdout())
			}
			if output == "" {
				output = export.Filename(rec, a.env.Now())
			}
			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return errors.Wrapf(err, "create %s", output)
			}
			if err := doc.Render(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return errors.Wrapf(err, "close %s", output)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "exported to", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", `output file ("-" for stdout)`)
	cmd.Flags().Int("width", 0, "line width (overrides config)")
	return cmd
}

// linkOrigin is scheme://host of link, or empty when link is not absolute.
func linkOrigin(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
