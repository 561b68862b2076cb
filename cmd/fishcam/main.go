package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wachiwi/fishcam/pkg/camera"
	"github.com/wachiwi/fishcam/pkg/capture"
	"github.com/wachiwi/fishcam/pkg/config"
	"github.com/wachiwi/fishcam/pkg/display"
	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/input"
	"github.com/wachiwi/fishcam/pkg/interval"
	"github.com/wachiwi/fishcam/pkg/journal"
	"github.com/wachiwi/fishcam/pkg/jpegcodec"
	"github.com/wachiwi/fishcam/pkg/liveview"
	"github.com/wachiwi/fishcam/pkg/logger"
	"github.com/wachiwi/fishcam/pkg/mode"
	"github.com/wachiwi/fishcam/pkg/msg"
	"github.com/wachiwi/fishcam/pkg/playback"
	"github.com/wachiwi/fishcam/pkg/remote"
	"github.com/wachiwi/fishcam/pkg/shutter"
	"github.com/wachiwi/fishcam/pkg/storage"
	"github.com/wachiwi/fishcam/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	flag.StringVar(&cfg.Storage.MediaDir, "media", cfg.Storage.MediaDir, "media directory")
	flag.StringVar(&cfg.Remote.Listen, "listen", cfg.Remote.Listen, "remote surface listen address")
	flag.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Interval.Schedule, "interval", cfg.Interval.Schedule, "cron schedule for interval shooting")
	placeholder := flag.Bool("placeholder", false, "show a test pattern instead of the sensor")
	flag.Parse()

	logger.Setup(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Error("Failed to set up telemetry", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					slog.Error("Error shutting down telemetry", "error", err)
				}
			}()
		}
	}

	bus := msg.NewBus(cfg.MailboxDepth)

	// --- Hardware ---
	var sampler input.Sampler = input.NopSampler{}
	gpio, err := input.NewGPIOSampler(input.GPIOConfig{
		Chip:    cfg.Input.GPIOChip,
		Mode:    cfg.Input.PinMode,
		Capture: cfg.Input.PinCapture,
		Other:   cfg.Input.PinOther,
		DialA:   cfg.Input.PinDialA,
		DialB:   cfg.Input.PinDialB,
	})
	if err != nil {
		slog.Warn("GPIO unavailable, controls only through the remote surface", "error", err)
	} else {
		sampler = gpio
	}
	defer sampler.Close()

	files, err := storage.New(cfg.Storage.MediaDir)
	if err != nil {
		logger.Fatal("Failed to open media directory", "error", err)
	}
	screen := display.New(cfg.Display.Width, cfg.Display.Height, hal.RGB565)
	cam := camera.NewCamera(camera.Config{
		Width:       cfg.Camera.Width,
		Height:      cfg.Camera.Height,
		FPS:         cfg.Camera.FPS,
		Placeholder: *placeholder,
	})
	defer cam.Close()

	// --- Components ---
	inputs := input.NewService(bus, sampler, input.Config{
		PollInterval:     cfg.Input.PollInterval,
		MaxRegistrations: cfg.Input.MaxRegistrations,
		CountsPerDetent:  cfg.Input.CountsPerDetent,
	})
	orchestrator := mode.New(bus)
	orchestrator.OnFinish = func(t mode.Trigger, o mode.Outcome, m mode.Mode) {
		slog.Info("Mode sequence finished", "trigger", t.String(), "outcome", o.String(), "mode", m.String())
	}

	lv := liveview.New(bus, cam, screen, files, jpegcodec.NewEncoder(), liveview.Config{
		Sensor:          hal.SensorMode{Width: cfg.Camera.Width, Height: cfg.Camera.Height},
		Quality:         cfg.Liveview.Quality,
		QualityStep:     cfg.Liveview.QualityStep,
		DialSensitivity: cfg.Liveview.DialSensitivity,
		StillPrefix:     cfg.Liveview.StillPrefix,
		StillExt:        cfg.Liveview.StillExt,
		MoviePrefix:     cfg.Liveview.MoviePrefix,
		MovieExt:        cfg.Liveview.MovieExt,
		CounterStart:    cfg.Liveview.CounterStart,
		MovieInterval:   cfg.Liveview.MovieInterval,
		StallFactor:     cfg.Liveview.StallFactor,
		CurtainTime:     cfg.Liveview.CurtainTime,
		IndicatorTime:   cfg.Liveview.IndicatorTime,
	})
	if player, err := shutter.New(cfg.Sound.Dir); err != nil {
		slog.Warn("Audio unavailable, shutter is silent", "error", err)
	} else {
		lv.Shutter = player.Func(cfg.Sound.Shutter)
	}

	var media *journal.Journal
	if cfg.Storage.Journal != "" {
		media = journal.New(cfg.Storage.Journal, cfg.Storage.JournalRetention)
		lv.OnSaved = func(name, kind string, frames int) {
			if err := media.Add(journal.Entry{Name: name, Kind: kind, Frames: frames}); err != nil {
				slog.Warn("Failed to update media journal", "file", name, "error", err)
			}
		}
	}

	pb := playback.New(bus, screen, files, jpegcodec.NewDecoder(), playback.Config{
		Root:                 cfg.Playback.Root,
		OwnPrefix:            cfg.Liveview.MoviePrefix,
		OwnMovieInterval:     cfg.Playback.OwnMovieInterval,
		ForeignMovieInterval: cfg.Playback.ForeignMovieInterval,
		DialSensitivity:      cfg.Playback.DialSensitivity,
	})
	captures := capture.New(bus)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Component stopped", "component", name, "error", err)
				stop()
			}
		}()
	}

	if cfg.Storage.Watch {
		watcher, err := storage.Watch(files.Root())
		if err != nil {
			slog.Warn("Media watcher unavailable", "error", err)
		} else {
			defer watcher.Close()
			pb.Changes = watcher
			run("watcher", func(ctx context.Context) error {
				watcher.Run(ctx)
				return nil
			})
		}
	}

	run("input", inputs.Run)
	run("liveview", lv.Run)
	run("playback", pb.Run)
	run("capture", captures.Run)
	run("mode", orchestrator.Run)

	// --- Remote surface and interval shooting ---
	if cfg.Remote.Enabled || cfg.Interval.Schedule != "" {
		client := remote.NewClient(bus, cfg.Remote.Timeout)

		if cfg.Remote.Enabled {
			srv := remote.NewServer(remote.Config{
				Listen:        cfg.Remote.Listen,
				User:          cfg.Remote.User,
				Password:      cfg.Remote.Password,
				SessionSecret: cfg.Remote.SessionSecret,
				FrameInterval: time.Second / time.Duration(cfg.Camera.FPS),
			}, client, screen, media)
			run("remote", srv.Run)
		}

		if cfg.Interval.Schedule != "" {
			sched, err := interval.New(cfg.Interval.Schedule, cfg.Interval.Location, client)
			if err != nil {
				logger.Fatal("Failed to schedule interval shooting", "error", err)
			}
			run("interval", sched.Run)
		}
	}

	slog.Info("Camera running", "media", cfg.Storage.MediaDir, "remote", cfg.Remote.Enabled)
	<-ctx.Done()
	slog.Info("Shutting down")
	wg.Wait()
}
