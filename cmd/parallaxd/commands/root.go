package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "parallaxd",
		Short: "parallaxd - Parallax wallpaper daemon for tiling compositors",
		Long: `parallaxd shifts the wallpaper in step with workspace switches, giving a
parallax scrolling effect across Hyprland, niri, river, Wayfire, Sway and
EWMH window managers.

It speaks each compositor's native IPC to follow workspace changes,
normalizes them into offsets, and can hand rendered frames to a
compositor plugin over shared memory.`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/parallaxd/config.yaml)")
	rootCmd.PersistentFlags().String("compositor", "", "compositor backend (auto, hyprland, niri, river, wayfire, sway, wayland, x11)")
	rootCmd.PersistentFlags().Float64("shift", 0, "pixels to shift per workspace (default 200)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	viper.BindPFlag("compositor", rootCmd.PersistentFlags().Lookup("compositor"))
	viper.BindPFlag("shift_pixels", rootCmd.PersistentFlags().Lookup("shift"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
