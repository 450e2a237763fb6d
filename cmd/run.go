// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sigitm-exporter/internal/browser"
	"sigitm-exporter/internal/captcha"
	"sigitm-exporter/internal/observability"
	"sigitm-exporter/internal/scraper"
	"sigitm-exporter/internal/store"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Logs into the portal, executes the saved query and exports the result",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their corresponding Viper keys so command-line
			// flags override config file and environment values. Only changed
			// flags are bound; a flag default must not shadow the config.
			if cmd.Flags().Changed("headless") {
				if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("report") {
				if err := viper.BindPFlag("portal.report_name", cmd.Flags().Lookup("report")); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateRun(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			solver := captcha.NewClient(cfg.Captcha, logger)

			driver, err := browser.NewDriver(cfg.Browser, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize browser driver: %w", err)
			}

			session := scraper.NewSession(cfg, driver, solver, logger)

			startedAt := time.Now()
			result := session.Run(ctx)
			finishedAt := time.Now()

			recordRun(ctx, cfg.Database.URL, store.Run{
				StartedAt:    startedAt,
				FinishedAt:   finishedAt,
				Succeeded:    result.Succeeded,
				ArtifactPath: result.ArtifactPath,
				FailedStage:  result.FailedStage,
			}, logger)

			if !result.Succeeded {
				return fmt.Errorf("export failed at stage %q", result.FailedStage)
			}

			logger.Info("Run finished",
				zap.String("artifact", result.ArtifactPath),
				zap.Duration("elapsed", finishedAt.Sub(startedAt).Round(time.Second)))
			return nil
		},
	}

	runCmd.Flags().Bool("headless", true, "run the browser without a visible window")
	runCmd.Flags().String("report", "", "saved query name to execute (overrides portal.report_name)")
	return runCmd
}

// recordRun persists the run outcome when a database is configured. History
// is best effort; a persistence failure never changes the exit code.
func recordRun(ctx context.Context, dbURL string, run store.Run, logger *zap.Logger) {
	if dbURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.Connect(ctx, dbURL, logger)
	if err != nil {
		logger.Warn("Run history unavailable", zap.Error(err))
		return
	}
	defer st.Close()

	if err := st.RecordRun(ctx, run); err != nil {
		logger.Warn("Failed to record run history", zap.Error(err))
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
