package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	apiURL       string
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Supervisor for single-process container workloads",
	Long: `warden owns the operational contract around a long-running workload:
it provisions the runtime environment, prepares the log sink, launches
exactly one process, probes its liveness on a fixed cadence, and exposes
the result to the container orchestrator.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./warden.yaml or /etc/warden/warden.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://127.0.0.1:9620", "status API URL of a running supervisor")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}
