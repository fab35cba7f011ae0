package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tbojanin/airsampler/internal/database"
	"github.com/tbojanin/airsampler/internal/globals"
	"github.com/tbojanin/airsampler/internal/models"
	"github.com/tbojanin/airsampler/internal/scheduler"
	"github.com/tbojanin/airsampler/internal/store"
)

var (
	scheduleLocation  string
	scheduleType      string
	scheduleFrequency string
	scheduleRetention string
	schedulePowerSave bool
	scheduleEnabled   bool
	scheduleJSON      bool
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"s", "schedules"},
	Short:   "Manage stored sampling schedules",
	Long:    `Create, inspect, edit and delete the schedule configs the run command can start.`,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all schedule configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		configs, err := st.ListConfigs()
		if err != nil {
			return err
		}
		if len(configs) == 0 {
			fmt.Println("No schedule configs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLOCATION\tTYPE\tFREQUENCY\tRETENTION\tPOWERSAVE\tENABLED")
		for _, config := range configs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%t\t%t\n",
				config.ID, config.Name, config.Location, config.Type,
				config.FrequencyLabel, retentionLabel(&config),
				config.PowerSave, config.Enabled)
		}
		return w.Flush()
	},
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show <name_or_id>",
	Short: "Show one schedule config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		config, err := scheduler.ResolveConfig(st, args[0])
		if err != nil {
			return err
		}

		if scheduleJSON {
			output, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintf(w, "ID:\t%d\n", config.ID)
		fmt.Fprintf(w, "Name:\t%s\n", config.Name)
		fmt.Fprintf(w, "Location:\t%s\n", config.Location)
		fmt.Fprintf(w, "Type:\t%s\n", config.Type)
		fmt.Fprintf(w, "Frequency:\t%s\n", config.FrequencyLabel)
		fmt.Fprintf(w, "Retention:\t%s\n", retentionLabel(config))
		fmt.Fprintf(w, "Power save:\t%t\n", config.PowerSave)
		fmt.Fprintf(w, "Enabled:\t%t\n", config.Enabled)
		fmt.Fprintf(w, "Created:\t%s\n", config.CreatedAt.Format("2006-01-02 15:04:05"))
		return w.Flush()
	},
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a schedule config",
	Long: `Create a stored schedule config.

Examples:
  airsampler schedule create bedroom --location "bedroom" --frequency 1m --retention 30d
  airsampler schedule create porch --location "porch" --frequency 5m --powersave`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		if scheduleLocation == "" {
			return fmt.Errorf("--location is required")
		}

		config := &models.ScheduleConfig{
			Name:      args[0],
			Location:  scheduleLocation,
			Enabled:   scheduleEnabled,
			PowerSave: schedulePowerSave,
		}
		if err := config.SetType(scheduleType); err != nil {
			return err
		}
		if err := config.SetFrequency(scheduleFrequency); err != nil {
			return err
		}
		if err := config.SetRetention(scheduleRetention); err != nil {
			return err
		}

		if err := st.CreateConfig(config); err != nil {
			if errors.Is(err, store.ErrNameTaken) {
				return fmt.Errorf("a schedule config named %q already exists", config.Name)
			}
			return err
		}

		fmt.Printf("Created schedule config %q (id %d).\n", config.Name, config.ID)
		return nil
	},
}

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update <name_or_id>",
	Short: "Update a schedule config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		config, err := scheduler.ResolveConfig(st, args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("location") {
			config.Location = scheduleLocation
		}
		if cmd.Flags().Changed("type") {
			if err := config.SetType(scheduleType); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("frequency") {
			if err := config.SetFrequency(scheduleFrequency); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("retention") {
			if err := config.SetRetention(scheduleRetention); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("powersave") {
			config.PowerSave = schedulePowerSave
		}
		if cmd.Flags().Changed("enabled") {
			config.Enabled = scheduleEnabled
		}

		if err := st.UpdateConfig(config); err != nil {
			return err
		}

		fmt.Printf("Updated schedule config %q.\n", config.Name)
		return nil
	},
}

var scheduleDeleteCmd = &cobra.Command{
	Use:   "delete <name_or_id>",
	Short: "Delete a schedule config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		config, err := scheduler.ResolveConfig(st, args[0])
		if err != nil {
			return err
		}

		if err := st.DeleteConfig(config.ID); err != nil {
			return err
		}

		fmt.Printf("Deleted schedule config %q.\n", config.Name)
		return nil
	},
}

func retentionLabel(config *models.ScheduleConfig) string {
	if config.RetentionLabel == nil {
		return "none"
	}
	return *config.RetentionLabel
}

// openStore initializes globals and returns the store.
func openStore() (store.Store, error) {
	if err := globals.Initialize(verbose); err != nil {
		return nil, err
	}
	return store.New(database.DB), nil
}

func init() {
	for _, cmd := range []*cobra.Command{scheduleCreateCmd, scheduleUpdateCmd} {
		cmd.Flags().StringVarP(&scheduleLocation, "location", "l", "", "Location label stored on readings")
		cmd.Flags().StringVarP(&scheduleType, "type", "t", models.SampleTypeAtmospheric, "Sample type: standard or atmospheric")
		cmd.Flags().StringVarP(&scheduleFrequency, "frequency", "f", "1m", "Sampling interval, e.g. 30s, 5m, 1h")
		cmd.Flags().StringVarP(&scheduleRetention, "retention", "r", "none", "Retention window, e.g. 7d, or none")
		cmd.Flags().BoolVar(&schedulePowerSave, "powersave", false, "Sleep the sensor between samples")
		cmd.Flags().BoolVar(&scheduleEnabled, "enabled", true, "Whether the config can be started")
	}

	scheduleShowCmd.Flags().BoolVar(&scheduleJSON, "json", false, "Emit JSON instead of a table")

	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleUpdateCmd)
	scheduleCmd.AddCommand(scheduleDeleteCmd)
	rootCmd.AddCommand(scheduleCmd)
}
