package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pverhoeven/warden/pkg/journal"
)

var historyLimit int

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent operational events",
	Long:  `Retrieve recent lifecycle, liveness, and provisioning events from a running supervisor, newest first.`,
	RunE:  runEvents,
}

// probesCmd represents the probes command
var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List recent probe results",
	Long:  `Retrieve recent liveness probe attempts from a running supervisor, newest first.`,
	RunE:  runProbes,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(probesCmd)
	eventsCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries to show")
	probesCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries to show")
}

func runEvents(cmd *cobra.Command, args []string) error {
	var events []journal.Event
	if err := fetchJSON(fmt.Sprintf("/events?limit=%d", historyLimit), &events); err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Kind", "Message")

	for _, ev := range events {
		table.Append(
			ev.Timestamp.Format(time.RFC3339),
			ev.Kind,
			ev.Message,
		)
	}

	table.Render()
	return nil
}

func runProbes(cmd *cobra.Command, args []string) error {
	var probes []journal.ProbeRecord
	if err := fetchJSON(fmt.Sprintf("/probes?limit=%d", historyLimit), &probes); err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(probes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(probes) == 0 {
		fmt.Println("No probes recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Result", "Status", "Failures", "Duration", "Error")

	for _, p := range probes {
		result := "ok"
		if !p.OK {
			result = "fail"
		}
		table.Append(
			p.Timestamp.Format(time.RFC3339),
			result,
			p.Status,
			fmt.Sprintf("%d", p.Failures),
			p.Duration.Round(time.Millisecond).String(),
			p.Error,
		)
	}

	table.Render()
	return nil
}
