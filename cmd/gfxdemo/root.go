package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/config"

	_ "github.com/gogpu/gfx/backend/native"
	_ "github.com/gogpu/gfx/backend/rust"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	configFile string
	backend    string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "gfxdemo",
		Short: "Exercise the gfx resource layer",
		Long: `gfxdemo drives the gfx device, shadow passes and shader chunk
registry without a window. Settings come from an optional TOML file and
can be overridden with flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "TOML settings file")
	cmd.PersistentFlags().StringVarP(&opts.backend, "backend", "b", "", "backend name (overrides [device] backend)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides [log] level)")

	cmd.AddCommand(newBackendsCmd(opts), newShadowCmd(opts), newComposeCmd(opts))
	return cmd
}

// load reads the settings file, applies flag overrides and installs the
// logger.
func (o *options) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("backend") {
		cfg.Device.Backend = o.backend
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel()

	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "gfx",
		Level:           log.Level(level),
	})
	gfx.SetLogger(slog.New(handler))

	o.cfg = cfg
	return nil
}
