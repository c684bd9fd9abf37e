package cli

import (
	"context"
	"crosssync/pkg/domain"
	"crosssync/svc/export"
	"crosssync/svc/share"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// sourceServer marks a record fetched through the API rather than decoded locally.
const sourceServer = "server"

func newOpenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <link>",
		Short: "Print the content behind a share link",
		Long: `Decodes the content carried by the link. When the link has no readable
payload the server is asked to look it up in storage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			rec, source, err := a.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Content *domain.SharedContent `json:"content"`
					Source  string                `json:"source"`
				}{rec, source})
			}
			stats := rec.Stats()
			fmt.Fprintf(cmd.ErrOrStderr(), "%s, %s, %d words (%s)\n",
				rec.UserName, rec.CreatedAt.Format("2006-01-02 15:04"), stats.WordCount, source)
			if raw, _ := cmd.Flags().GetBool("html"); raw {
				fmt.Fprintln(out, rec.Content)
				return nil
			}
			fmt.Fprintln(out, export.ToText(rec.Content))
			return nil
		},
	}
	cmd.Flags().Bool("html", false, "print the stored markup instead of text")
	cmd.Flags().Bool("json", false, "print the record as JSON")
	return cmd
}

// resolve prefers the payload embedded in link and only calls the server
// when it is missing or unreadable.
func (a *app) resolve(ctx context.Context, link string) (*domain.SharedContent, string, error) {
	rec, err := share.Decode(link)
	if err == nil {
		if rec.ID == "" {
			if u, perr := url.Parse(link); perr == nil {
				rec.ID, _ = share.IDFromPath(u.Path)
			}
		}
		return rec, share.SourceURL, nil
	}
	rec, source, err := a.client().Open(ctx, link)
	if err != nil {
		return nil, "", err
	}
	if source == "" {
		source = sourceServer
	}
	return rec, source, nil
}
