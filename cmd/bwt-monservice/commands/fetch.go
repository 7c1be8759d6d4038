package commands

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"bwt-monservice/internal/components/chrono"
	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/internal/scrapers/bwt"
	"bwt-monservice/pkg/restyutil"
	"bwt-monservice/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var dumpDir string

func init() {
	fetchCmd.Flags().StringVar(&dumpDir, "dump", "", "Write every http exchange to this directory, it is cleared first.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--config <path/to/config.json5>] [--dump <dir>]",
	Short: "Logs in, fetches the device data once and prints the merged record.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		opts := cfg.ClientOptions()
		opts.Telemetry = telemetry.SlogAPI{}
		opts.Clock = chrono.NewStandardImpl()
		if dumpDir != "" {
			output, err := restyutil.NewFilesystemOutput(dumpDir)
			if err != nil {
				serviceutil.Fatal("failed to prepare dump directory", err)
			}
			opts.Dump = output
		}
		client, err := bwt.NewClient(opts)
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}
		defer client.Close()

		ctx := cmd.Context()
		err = client.Authenticate(ctx, cfg.Username, cfg.Password)
		if err != nil {
			serviceutil.Fatal("failed to login", err)
		}

		t1 := time.Now()
		record, err := client.GetDeviceData(ctx)
		if err != nil {
			serviceutil.Fatal("failed to fetch device data", err)
		}
		slog.Info("fetch time", "seconds", time.Since(t1).Seconds())

		renderRecord(record)
	},
}

func renderRecord(record bwt.Record) {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Key", "Value", "Type"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, record[k], fmt.Sprintf("%T", record[k])})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
