package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/petems/soundboard-tray/internal/app"
	"github.com/petems/soundboard-tray/internal/audio"
	"github.com/petems/soundboard-tray/internal/config"
	"github.com/petems/soundboard-tray/internal/decode"
	"github.com/petems/soundboard-tray/internal/hotkey"
	"github.com/petems/soundboard-tray/internal/library"
	"github.com/petems/soundboard-tray/internal/logging"
	"github.com/petems/soundboard-tray/internal/permissions"
	"github.com/petems/soundboard-tray/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

type options struct {
	ConfigFile  string `short:"C" long:"config" description:"Path to configuration file"`
	LogLevel    string `short:"l" long:"loglevel" description:"Logging level {trace, debug, info, warn, error}"`
	ListDevices bool   `long:"list-devices" description:"List audio devices and exit"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
}

const shutdownTimeout = 5 * time.Second

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.ShowVersion {
		fmt.Printf("soundboard-tray %s (%s)\n", Version, Commit)
		return
	}

	// Load config from XDG/Library/AppData
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		// Use console-only logger if config fails to load
		log, _ := logging.New("info", "")
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	// Initialize logger with configured level
	log, logCloser := logging.New(cfg.LogLevel, config.LogPath())
	defer logCloser.Close()

	host, err := audio.NewPortAudioHost(log.With().Str("component", "audio").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer host.Close()

	if opts.ListDevices {
		if err := listDevices(os.Stdout, host, cfg.Audio.VirtualCablePatterns); err != nil {
			log.Fatal().Err(err).Msg("Failed to list devices")
		}
		return
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(log); err != nil {
		log.Warn().Err(err).Msg("Continuing without microphone access")
	}

	var monitor app.Monitor
	if cfg.Audio.Monitor {
		m, err := audio.NewMonitor(log.With().Str("component", "monitor").Logger())
		if err != nil {
			log.Error().Err(err).Msg("Local monitor unavailable")
		} else {
			monitor = m
			defer m.Close()
		}
	}

	lib, err := library.Open(cfg.LibraryPath(), log.With().Str("component", "library").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open sound library")
	}

	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(tray.Config{
		Version: Version,
		Commit:  Commit,
		LogPath: config.LogPath(),
		Logger:  log.With().Str("component", "tray").Logger(),
	})

	application := app.New(app.Config{
		Host:    host,
		Monitor: monitor,
		Decoder: decode.New(cfg.Audio.SampleRate),
		Library: lib,
		Config:  cfg,
		Logger:  log,
		Sink:    trayUI,
	})

	// Set app reference in tray
	trayUI.SetApp(application)

	// Register global stop hotkey
	hkManager, err := hotkey.New()
	if err != nil {
		log.Warn().Err(err).Msg("Global hotkeys unavailable")
	} else {
		defer hkManager.Close()
		accel := cfg.PlatformStopHotkey()
		if err := hkManager.Register(accel, func(pressed bool) {
			if pressed {
				application.Stop()
			}
		}); err != nil {
			log.Warn().Err(err).Str("hotkey", accel).Msg("Failed to register stop hotkey")
		}
	}

	// Setup shutdown signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", Version).Msg("Soundboard starting...")
	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	// Start tray UI - MUST run on main thread
	if err := trayUI.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Tray error")
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	if faults := application.Faults(); faults > 0 {
		log.Warn().Uint64("faults", faults).Msg("Audio callbacks recovered from faults this session")
	}
}

func listDevices(w io.Writer, host audio.Host, patterns []string) error {
	devices, err := host.Devices()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tIN\tOUT\tCLASS\tNAME")
	for _, d := range devices {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\n",
			d.ID, d.MaxInputChannels, d.MaxOutputChannels, audio.Classify(d, patterns), d.Name)
	}
	return tw.Flush()
}
