package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pverhoeven/warden/pkg/config"
	"github.com/pverhoeven/warden/pkg/health"
)

// probeCmd runs one liveness probe and reports it through the exit
// code, which is the whole protocol a container HEALTHCHECK needs:
// 0 healthy, 1 unhealthy.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run a single liveness probe",
	Long: `Probe executes the configured liveness check once and exits 0 on
success or 1 on failure. Intended as the container HEALTHCHECK command
against a running supervisor.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	probe := health.CommandProbe{
		Command: cfg.Probe.Command,
		Token:   cfg.Probe.Token,
		Timeout: cfg.Probe.Timeout,
	}

	if err := probe.Check(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
	return nil
}
