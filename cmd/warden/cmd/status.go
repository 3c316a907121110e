package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pverhoeven/warden/pkg/api"
	"github.com/pverhoeven/warden/pkg/retry"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the supervisor's current status",
	Long:  `Retrieve liveness state, failure counters, and workload uptime from a running supervisor's status API.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	var status api.Status
	if err := fetchJSON("/status", &status); err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")

	table.Append("Liveness", string(status.Liveness.Status))
	table.Append("Consecutive Failures", fmt.Sprintf("%d", status.Liveness.ConsecutiveFailures))
	if !status.Liveness.LastProbeAt.IsZero() {
		table.Append("Last Probe", status.Liveness.LastProbeAt.Format(time.RFC3339))
	} else {
		table.Append("Last Probe", "never")
	}
	if status.Liveness.LastError != "" {
		table.Append("Last Error", status.Liveness.LastError)
	}
	table.Append("PID", fmt.Sprintf("%d", status.PID))
	table.Append("Started At", status.StartedAt.Format(time.RFC3339))
	table.Append("Uptime", fmt.Sprintf("%.1fs", status.UptimeSeconds))

	table.Render()
	return nil
}

// fetchJSON retrieves a JSON resource from the status API. Transient
// connection errors are retried with backoff; API error responses and
// malformed bodies fail immediately.
func fetchJSON(path string, out interface{}) error {
	url := apiURL + path
	client := &http.Client{Timeout: 10 * time.Second}

	var permanent error
	err := retry.Do(context.Background(), retry.DefaultConfig(), func() error {
		resp, err := client.Get(url)
		if err != nil {
			err = fmt.Errorf("failed to connect to supervisor API: %w", err)
			if !retry.IsRetryable(err) {
				permanent = err
				return nil
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			permanent = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
			return nil
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			permanent = fmt.Errorf("failed to parse response: %w", err)
			return nil
		}
		return nil
	})
	if permanent != nil {
		return permanent
	}
	return err
}
