package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/parallaxd/internal/config"
)

var workspacesJSON bool

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List workspaces as the compositor reports them",
	RunE:  runWorkspaces,
}

func init() {
	workspacesCmd.Flags().BoolVar(&workspacesJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(workspacesCmd)
}

func runWorkspaces(cmd *cobra.Command, args []string) error {
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

	workspaces, err := adapter.Workspaces()
	if err != nil {
		return err
	}

	if workspacesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(workspaces)
	}

	fmt.Printf("Model: %s\n\n", adapter.Model())
	fmt.Printf("%-6s %-14s %-8s %-8s\n", "ID", "NAME", "ACTIVE", "VISIBLE")
	for _, ws := range workspaces {
		active, visible := "", ""
		if ws.Active {
			active = "*"
		}
		if ws.Visible {
			visible = "*"
		}
		fmt.Printf("%-6d %-14s %-8s %-8s\n", ws.ID, ws.Name, active, visible)
	}
	return nil
}
