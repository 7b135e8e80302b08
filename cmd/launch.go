package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostdriver/internal/config"
	"github.com/xkilldash9x/ghostdriver/internal/observability"
)

type launchOptions struct {
	headless   bool
	persona    bool
	quitOnExit bool
}

func newLaunchCmd() *cobra.Command {
	var opts launchOptions

	launchCmd := &cobra.Command{
		Use:   "launch",
		Short: "Provision and patch chromedriver, start it and open a browser session",
		Long: `Ensures a patched chromedriver exists in the working directory, starts it on a
random local port and opens a WebDriver session against it. The session stays
open until the command is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetCapabilitiesHeadless(opts.headless)
			}
			if cmd.Flags().Changed("devtools-persona") {
				cfg.SetConnectDevToolsPersona(opts.persona)
			}
			return runLaunch(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	launchCmd.Flags().BoolVar(&opts.headless, "headless", false, "run the browser headless (overrides capabilities.headless)")
	launchCmd.Flags().BoolVar(&opts.persona, "devtools-persona", false, "apply the user-agent, timezone and locale over DevTools (overrides connect.devtools_persona)")
	launchCmd.Flags().BoolVar(&opts.quitOnExit, "quit-on-exit", false, "quit the session and stop chromedriver when interrupted")
	return launchCmd
}

// runLaunch starts the pipeline and blocks until ctx is done.
func runLaunch(ctx context.Context, out io.Writer, cfg config.Interface, opts launchOptions) error {
	logger := observability.GetLogger()
	d := newDriver(cfg)

	s, err := d.Start(ctx)
	if err != nil {
		if proc := d.Process(); proc != nil {
			logger.Warn("chromedriver is still running", zap.Int("pid", proc.PID()), zap.Int("port", proc.Port))
		}
		return err
	}

	fmt.Fprintf(out, "session %s ready on http://localhost:%d (run %s)\n", s.ID(), s.Port, d.RunID())

	<-ctx.Done()

	if !opts.quitOnExit {
		logger.Info("Leaving the browser session open", zap.String("session_id", s.ID()), zap.Int("port", s.Port))
		return nil
	}
	logger.Info("Closing the browser session", zap.String("session_id", s.ID()))
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}
