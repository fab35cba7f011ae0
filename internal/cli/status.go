package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tbojanin/airsampler/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running scheduler's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := control.NewClient()
		if err != nil {
			if errors.Is(err, control.ErrNoScheduler) {
				fmt.Println("No scheduler is running.")
				return nil
			}
			return err
		}
		defer client.Close()

		status, err := client.Status()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "State:\t%s\n", status.State)
		fmt.Fprintf(w, "Config:\t%s\n", status.ConfigName)
		fmt.Fprintf(w, "Location:\t%s\n", status.Location)
		fmt.Fprintf(w, "Type:\t%s\n", status.SampleType)
		fmt.Fprintf(w, "Frequency:\t%s\n", status.Frequency)
		fmt.Fprintf(w, "Power save:\t%t\n", status.PowerSave)
		if !status.StartedAt.IsZero() {
			fmt.Fprintf(w, "Started:\t%s\n", status.StartedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(w, "Cycles:\t%d\n", status.Cycles)
		fmt.Fprintf(w, "Consecutive failures:\t%d\n", status.ConsecutiveFailures)
		if !status.LastCycle.IsZero() {
			fmt.Fprintf(w, "Last cycle:\t%s\n", status.LastCycle.Local().Format("2006-01-02 15:04:05"))
		}
		if status.LastError != "" {
			fmt.Fprintf(w, "Last error:\t%s\n", status.LastError)
		}
		return w.Flush()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := control.NewClient()
		if err != nil {
			if errors.Is(err, control.ErrNoScheduler) {
				return fmt.Errorf("no scheduler is running")
			}
			return err
		}
		defer client.Close()

		if err := client.Stop(); err != nil {
			return err
		}

		fmt.Println("Scheduler stopped.")
		return nil
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Ask the running scheduler for an immediate reading",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := control.NewClient()
		if err != nil {
			if errors.Is(err, control.ErrNoScheduler) {
				return fmt.Errorf("no scheduler is running")
			}
			return err
		}
		defer client.Close()

		if err := client.TakeReading(); err != nil {
			return err
		}

		fmt.Println("Reading taken.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(sampleCmd)
}
