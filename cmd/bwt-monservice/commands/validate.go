package commands

import (
	"fmt"
	"os"

	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/internal/integration"
	"bwt-monservice/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [--config <path/to/config.json5>]",
	Short: "Checks that the configured credentials can log in and reach a device.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		tel := telemetry.SlogAPI{}
		// validation never schedules anything
		env := cfg.Env(tel, nil)
		result, err := integration.ValidateInput(cmd.Context(), env, cfg.Credentials())
		if err != nil {
			fmt.Fprintf(os.Stderr, "validation failed (%s): %v\n", integration.FormError(err), err)
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Title", "Receipt line key"})
		t.AppendRow(table.Row{result.Title, result.ReceiptLineKey})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
