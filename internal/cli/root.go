package cli

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "airsampler",
	Short: "Particulate matter sampling scheduler",
	Long: `A sampling daemon for SEN0460-style particulate matter sensors on I2C.

It wakes the sensor on a schedule, reads PM1/PM2.5/PM10 mass concentrations
and particle counts, persists them to a local SQLite database, prunes rows
past the configured retention window, and reports the air quality index for
the latest reading.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
}
