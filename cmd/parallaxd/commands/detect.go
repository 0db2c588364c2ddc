package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/parallaxd/internal/compositor"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the running compositor",
	Long: `Probe the session environment and report which compositor backend
parallaxd would use, without connecting to it.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	kind := compositor.DetectKind()
	adapter, err := compositor.New(kind, compositor.DefaultOptions())
	if err != nil {
		return err
	}
	defer adapter.Close()

	fmt.Printf("Compositor: %s\n", adapter.Name())
	fmt.Printf("Backend:    %s\n", adapter.Kind())
	fmt.Printf("Model:      %s\n", adapter.Model())
	return nil
}
