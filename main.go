// Command edenshim runs the local stand-in for the learning platform's
// remote data and auth service, and offers a few commands for inspecting and
// seeding it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stevemurr/eden-shim/client"
	"github.com/stevemurr/eden-shim/config"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	envFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "edenshim",
		Short: "Local backend shim for the Eden learning platform",
		Long: `edenshim emulates the platform's remote database and auth service on
local durable storage: a single signed-in session and named record
collections such as "profiles" and "certificates".

When backend credentials are configured the real service is expected to be
used instead; edenshim still starts, logs the fallback, and serves locally.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			zc := zap.NewProductionConfig()
			if a.verbose || cfg.Debug {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			a.logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load if present")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(a),
		newSeedCmd(a),
		newSelectCmd(a),
		newSignInCmd(a, "signin"),
		newSignInCmd(a, "signup"),
		newSignOutCmd(a),
		newSessionCmd(a),
	)
	return root
}

func (a *app) openClient() (*client.Client, error) {
	return client.Open(a.cfg, client.WithLogger(a.logger))
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
