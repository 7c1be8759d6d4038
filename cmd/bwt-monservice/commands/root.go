package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/pkg/serviceutil"

	"github.com/spf13/cobra"
)

const serviceName = "bwt-monservice"

var (
	configPath string
	verbose    bool
	otelSetup  telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "bwt-monservice",
	Short: "bwt-monservice polls a water softener through the BWT MonService portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)

		var err error
		otelSetup, err = telemetry.SetupFromEnv(cmd.Context(), serviceName)
		switch {
		case os.IsNotExist(err):
			slog.Debug("telemetry.json5 not found, otel disabled")
		case err != nil:
			serviceutil.Fatal("failed to setup telemetry", err)
		default:
			telemetry.InstrumentPerfStats(cmd.Context(), telemetry.SlogAPI{})
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otelSetup.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "The config file, overridden by <name>.local.<ext> when present.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
