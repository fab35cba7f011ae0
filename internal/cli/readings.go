package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbojanin/airsampler/aqi"
	"github.com/tbojanin/airsampler/internal/models"
	"github.com/tbojanin/airsampler/internal/store"
)

var (
	readingsLimit     int
	readingsLocation  string
	readingsType      string
	readingsSince     string
	readingsJSON      bool
	pruneOlderThan    string
	pruneLocation     string
	pruneConfirmation bool
)

var readingsCmd = &cobra.Command{
	Use:     "readings",
	Aliases: []string{"r"},
	Short:   "Inspect and prune stored readings",
}

var readingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored readings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		query := store.ReadingQuery{
			Limit:    readingsLimit,
			Location: readingsLocation,
			Type:     readingsType,
		}
		if readingsSince != "" {
			window, err := models.ParseRetention(readingsSince)
			if err != nil {
				return fmt.Errorf("invalid --since window: %w", err)
			}
			since := time.Now().UTC().Add(-window)
			query.Since = &since
		}

		readings, err := st.ListReadings(query)
		if err != nil {
			return err
		}
		if readingsJSON {
			return printReadingsJSON(readings)
		}
		if len(readings) == 0 {
			fmt.Println("No readings.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tLOCATION\tTYPE\tPM1\tPM2.5\tPM10\tAQI\tLEVEL")
		for _, reading := range readings {
			aqiCell, levelCell := "-", "-"
			pm10 := float64(reading.PM10)
			if result, err := aqi.Compute(float64(reading.PM25), &pm10); err == nil {
				aqiCell = strconv.Itoa(result.Value)
				levelCell = string(result.Level)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				reading.Timestamp.Local().Format("2006-01-02 15:04:05"),
				reading.Location, reading.Type,
				reading.PM1, reading.PM25, reading.PM10,
				aqiCell, levelCell)
		}
		return w.Flush()
	},
}

var readingsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete readings older than a window",
	Long: `Delete readings older than the given window, optionally scoped to a location.

Examples:
  airsampler readings prune --older-than 30d --yes
  airsampler readings prune --older-than 7d --location "garage" --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		window, err := models.ParseRetention(pruneOlderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than window: %w", err)
		}
		if window <= 0 {
			return fmt.Errorf("--older-than must name a finite window")
		}

		if !pruneConfirmation {
			return fmt.Errorf("pass --yes to confirm deletion")
		}

		cutoff := time.Now().UTC().Add(-window)
		deleted, err := st.PruneReadings(cutoff, pruneLocation)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d readings older than %s.\n", deleted, cutoff.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

// ReadingInfo is the JSON row shape for readings list output.
type ReadingInfo struct {
	Timestamp string `json:"timestamp"`
	Location  string `json:"location"`
	Type      string `json:"type"`
	PM1       int    `json:"pm1"`
	PM25      int    `json:"pm2_5"`
	PM10      int    `json:"pm10"`
	AQI       *int   `json:"aqi"`
	Level     string `json:"level,omitempty"`
}

func printReadingsJSON(readings []models.Reading) error {
	rows := make([]ReadingInfo, 0, len(readings))
	for _, reading := range readings {
		row := ReadingInfo{
			Timestamp: reading.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Location:  reading.Location,
			Type:      reading.Type,
			PM1:       reading.PM1,
			PM25:      reading.PM25,
			PM10:      reading.PM10,
		}
		pm10 := float64(reading.PM10)
		if result, err := aqi.Compute(float64(reading.PM25), &pm10); err == nil {
			row.AQI = &result.Value
			row.Level = string(result.Level)
		}
		rows = append(rows, row)
	}

	output, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

var aqiCmd = &cobra.Command{
	Use:   "aqi <pm2.5> [pm10]",
	Short: "Compute the air quality index for given concentrations",
	Long: `Compute the US EPA air quality index for a PM2.5 concentration in µg/m³,
optionally combined with a PM10 concentration. The reported index is the
worse of the two.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pm25, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid PM2.5 concentration %q", args[0])
		}

		var pm10 *float64
		if len(args) == 2 {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid PM10 concentration %q", args[1])
			}
			pm10 = &value
		}

		result, err := aqi.Compute(pm25, pm10)
		if err != nil {
			return err
		}

		fmt.Printf("AQI: %d (%s, driven by %s)\n", result.Value, result.Level, result.Source)
		fmt.Println(result.HealthMessage)
		return nil
	},
}

func init() {
	readingsListCmd.Flags().IntVarP(&readingsLimit, "limit", "n", 20, "Maximum rows to print")
	readingsListCmd.Flags().StringVarP(&readingsLocation, "location", "l", "", "Only readings from this location")
	readingsListCmd.Flags().StringVarP(&readingsType, "type", "t", "", "Only readings of this sample type")
	readingsListCmd.Flags().StringVar(&readingsSince, "since", "", "Only readings from the last window, e.g. 24h")
	readingsListCmd.Flags().BoolVar(&readingsJSON, "json", false, "Emit JSON instead of a table")

	readingsPruneCmd.Flags().StringVar(&pruneOlderThan, "older-than", "", "Delete readings older than this window, e.g. 30d")
	readingsPruneCmd.Flags().StringVarP(&pruneLocation, "location", "l", "", "Only prune readings from this location")
	readingsPruneCmd.Flags().BoolVarP(&pruneConfirmation, "yes", "y", false, "Confirm the deletion")
	readingsPruneCmd.MarkFlagRequired("older-than")

	readingsCmd.AddCommand(readingsListCmd)
	readingsCmd.AddCommand(readingsPruneCmd)
	rootCmd.AddCommand(readingsCmd)
	rootCmd.AddCommand(aqiCmd)
}
