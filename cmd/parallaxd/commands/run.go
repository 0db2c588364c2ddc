package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/parallaxd/internal/api"
	"github.com/bryanchriswhite/parallaxd/internal/compositor"
	"github.com/bryanchriswhite/parallaxd/internal/config"
	"github.com/bryanchriswhite/parallaxd/internal/frames"
	"github.com/bryanchriswhite/parallaxd/internal/logger"
	"github.com/bryanchriswhite/parallaxd/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the parallax daemon",
	Long: `Connect to the running compositor, follow workspace changes and drive
parallax offsets. Stays in the foreground until interrupted.`,
	Example: `  # Auto-detect the compositor and run
  parallaxd run

  # Force the Hyprland backend with a larger shift
  parallaxd run --compositor hyprland --shift 300

  # Run with the status API enabled in the config file
  parallaxd run --config ~/.config/parallaxd/config.yaml`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// pollInterval paces the event loop. Events are buffered adapter-side, so
// a switch is picked up at most one interval late.
const pollInterval = 50 * time.Millisecond

func runDaemon(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	if viper.IsSet("compositor") && viper.GetString("compositor") != "" {
		configMgr.SetCompositor(viper.GetString("compositor"))
	}
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		configMgr.SetLogLevel(viper.GetString("log_level"))
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("daemon")
	log.Info().Str("config", configMgr.GetConfigPath()).Msg("configuration loaded")

	shift := cfg.ShiftPixels
	if viper.IsSet("shift_pixels") && viper.GetFloat64("shift_pixels") > 0 {
		shift = viper.GetFloat64("shift_pixels")
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		return err
	}
	defer adapter.Close()

	log.Info().Str("compositor", adapter.Name()).Msg("connecting")
	if err := adapter.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", adapter.Name(), err)
	}
	log.Info().
		Stringer("model", adapter.Model()).
		Str("workspace", adapter.CurrentWorkspace().String()).
		Msg("connected")

	policy := workspace.ParsePolicy(cfg.TagPolicy)
	tracker := workspace.NewTracker(shift, workspace.Policy{MultiTag: policy}, nil)
	seedTracker(tracker, adapter)

	if cfg.API.Enabled {
		server := api.NewServer(adapter, tracker, configMgr)
		go func() {
			if err := server.Start(cfg.API.Port); err != nil {
				log.Error().Err(err).Msg("status API stopped")
			}
		}()
	}

	channel := frameChannel(adapter, log)
	defer func() {
		if channel != nil {
			channel.Close()
		}
	}()
	if channel != nil {
		if err := announceFrameBuffer(channel, adapter, log); err != nil {
			log.Warn().Err(err).Msg("frame buffer announcement failed")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Info().Msg("parallaxd is running")
	for {
		select {
		case <-sigChan:
			log.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			drainEvents(adapter, tracker, log)
		}
	}
}

func newAdapter(cfg *config.Config) (compositor.Adapter, error) {
	kind, err := compositor.ParseKind(cfg.Compositor)
	if err != nil {
		return nil, err
	}
	opts := compositor.Options{
		RetryAttempts: cfg.Retry.Attempts,
		RetryDelayMS:  cfg.Retry.DelayMS,
		GridWidth:     cfg.Grid.Width,
		GridHeight:    cfg.Grid.Height,
		TagPolicy:     workspace.ParsePolicy(cfg.TagPolicy),
	}
	return compositor.New(kind, opts)
}

// seedTracker records the current context for every known monitor so the
// first real event produces a delta from the right baseline.
func seedTracker(tracker *workspace.Tracker, adapter compositor.Adapter) {
	current := adapter.CurrentWorkspace()
	monitors, err := adapter.Monitors()
	if err != nil || len(monitors) == 0 {
		tracker.Observe("", current)
		return
	}
	for _, m := range monitors {
		tracker.Observe(m.Name, current)
	}
}

// drainEvents forwards every pending change to the tracker. ErrNoData ends
// the drain; anything else is logged and swallowed, the loop carries on.
func drainEvents(adapter compositor.Adapter, tracker *workspace.Tracker, log *zerolog.Logger) {
	for {
		ev, err := adapter.PollEvent()
		if err != nil {
			if !errors.Is(err, compositor.ErrNoData) {
				log.Debug().Err(err).Msg("poll failed")
			}
			return
		}
		log.Debug().
			Str("monitor", ev.Monitor).
			Str("from", ev.Old.String()).
			Str("to", ev.New.String()).
			Bool("steal", ev.Steal).
			Msg("workspace change")
		tracker.HandleChange(ev)
	}
}

// frameChannel wires up shared-memory frame delivery when a cooperating
// Wayfire plugin is listening. Other compositors render through their own
// layer surface and need no channel.
func frameChannel(adapter compositor.Adapter, log *zerolog.Logger) *frames.Channel {
	if adapter.Kind() != compositor.KindWayfire {
		return nil
	}
	path, err := compositor.WayfirePluginSocketPath()
	if err != nil {
		log.Debug().Msg("no wayfire frame plugin, rendering stays in-process")
		return nil
	}
	log.Info().Str("socket", path).Msg("wayfire frame plugin found")
	return frames.NewChannel(path)
}

// announceFrameBuffer allocates a shared buffer sized to the primary
// output and hands its fd to the plugin. The renderer then writes frames
// into the mapping; the plugin re-reads it on every header stamp.
func announceFrameBuffer(channel *frames.Channel, adapter compositor.Adapter, log *zerolog.Logger) error {
	monitors, err := adapter.Monitors()
	if err != nil || len(monitors) == 0 {
		return fmt.Errorf("no monitor to size the frame buffer: %w", err)
	}
	primary := monitors[0]
	for _, m := range monitors {
		if m.Primary {
			primary = m
		}
	}

	buf, err := frames.NewBuffer(primary.Width, primary.Height, frames.FormatARGB8888)
	if err != nil {
		return err
	}
	if err := channel.Publish(buf); err != nil {
		buf.Close()
		return err
	}
	log.Info().
		Int("width", primary.Width).
		Int("height", primary.Height).
		Msg("shared frame buffer announced")
	return nil
}
