// Package cli is the crosssync command line tool: share files as links,
// open and export links, and list social targets.
package cli

import (
	"context"
	"crosssync/svc/client"
	"crosssync/svc/deliver"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Env is what the commands touch outside the process.
type Env struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Clipboard deliver.Clipboard
	Now       func() time.Time
}

func DefaultEnv() Env {
	return Env{
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
		Clipboard: deliver.SystemClipboard,
		Now:       time.Now,
	}
}

type app struct {
	env     Env
	cfgFile string
	cfg     *Config
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.Server, a.cfg.Timeout)
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, a.cfg.Timeout*2)
}

func NewRootCmd(env Env) *cobra.Command {
	a := &app{env: env}
	root := &cobra.Command{
		Use:   "crosssync",
		Short: "Share rich text as self-contained links",
		Long: `crosssync turns a document into a CrossSync share link that carries the
content itself, so the link opens anywhere even when the server has
forgotten it. Links can be opened, exported and re-shared from here.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(a.cfgFile)
			if err != nil {
				return err
			}
			if s, _ := cmd.Flags().GetString("server"); s != "" {
				cfg.Server = s
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)
	root.PersistentFlags().StringVar(&a.cfgFile, "config", DefaultConfigPath(), "config file path")
	root.PersistentFlags().String("server", "", "server URL (overrides config)")
	root.AddCommand(
		newShareCmd(a),
		newUpdateCmd(a),
		newOpenCmd(a),
		newExportCmd(a),
		newSocialCmd(a),
		newConfigCmd(a),
	)
	return root
}

func Execute() error {
	return NewRootCmd(DefaultEnv()).Execute()
}
