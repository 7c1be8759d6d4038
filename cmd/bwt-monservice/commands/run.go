package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bwt-monservice/internal/components/chrono"
	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/internal/entities"
	"bwt-monservice/internal/integration"
	"bwt-monservice/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--config <path/to/config.json5>]",
	Short: "Polls the device on the configured interval and prints its sensors after every poll.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		tel := telemetry.SlogAPI{}
		clock := chrono.NewStandardImpl()
		cron := chrono.NewStandardCron(tel, clock)
		defer cron.Stop()

		registry := integration.NewRegistry(cfg.Env(tel, cron))
		defer func() {
			err := registry.Close()
			if err != nil {
				slog.Warn("failed to unload", "err", err)
			}
		}()

		ctx := cmd.Context()
		setupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		instance, err := registry.Add(setupCtx, cfg.Credentials(), cfg.Options())
		cancel()
		if err != nil {
			serviceutil.Fatal(
				fmt.Sprintf("failed to setup (%s)", integration.FormError(err)),
				err,
			)
		}
		slog.Info(
			"polling",
			"receipt_line_key", instance.Key(),
			"scan_interval_minutes", instance.Options().ScanInterval,
		)

		render := func() {
			renderEntities(instance.Sensors(), instance.BinarySensors())
		}
		render()
		remove := instance.Coordinator().AddListener(render)
		defer remove()

		<-ctx.Done()
		slog.Info("shutting down")
	},
}

func renderEntities(sensors []entities.Sensor, binarySensors []entities.BinarySensor) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Entity", "Value", "Unit", "Available"})

	for _, s := range sensors {
		value, ok := s.Value()
		if !ok {
			value = "-"
		}
		t.AppendRow(table.Row{s.UniqueId(), value, s.Description.Unit, s.Available()})
	}
	t.AppendSeparator()
	for _, s := range binarySensors {
		var value any = "-"
		on, ok := s.IsOn()
		if ok {
			value = on
		}
		t.AppendRow(table.Row{s.UniqueId(), value, "", s.Available()})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
