package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/parallaxd/internal/config"
)

var monitorsJSON bool

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List the compositor's outputs",
	Example: `  # Tabular listing
  parallaxd monitors

  # JSON for scripting
  parallaxd monitors --json`,
	RunE: runMonitors,
}

func init() {
	monitorsCmd.Flags().BoolVar(&monitorsJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(monitorsCmd)
}

func runMonitors(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return err
	}
	adapter, err := newAdapter(configMgr.Get())
	if err != nil {
		return err
	}
	defer adapter.Close()

	if err := adapter.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", adapter.Name(), err)
	}

	monitors, err := adapter.Monitors()
	if err != nil {
		return err
	}

	if monitorsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(monitors)
	}

	fmt.Printf("%-4s %-12s %-12s %-10s %-6s %s\n",
		"ID", "NAME", "RESOLUTION", "POSITION", "SCALE", "PRIMARY")
	for _, m := range monitors {
		primary := ""
		if m.Primary {
			primary = "*"
		}
		fmt.Printf("%-4d %-12s %-12s %-10s %-6.2f %s\n",
			m.ID, m.Name,
			fmt.Sprintf("%dx%d", m.Width, m.Height),
			fmt.Sprintf("%d,%d", m.X, m.Y),
			m.Scale, primary)
	}
	return nil
}
