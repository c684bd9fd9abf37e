package cli

import (
	"crosssync/pkg/domain"
	"crosssync/svc/deliver"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSocialCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "social <link>",
		Short: "List ready-made social sharing URLs for a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			user := a.cfg.User
			if rec, _, err := a.resolve(ctx, args[0]); err == nil {
				user = rec.UserName
			}
			links := deliver.SocialLinks(args[0], user)
			if name, _ := cmd.Flags().GetString("platform"); name != "" {
				p, ok := deliver.Lookup(name)
				if !ok {
					return errors.Wrapf(domain.ErrInvalidRequest, "unknown platform %q", name)
				}
				links = []deliver.Link{{Name: p.Name, Icon: p.Icon, URL: p.Build(args[0], deliver.ShareText(user))}}
			}
			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(links)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, l := range links {
				fmt.Fprintf(tw, "%s\t%s\n", l.Name, l.URL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringP("platform", "p", "", "only this platform (whatsapp, x, telegram, ...)")
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}
