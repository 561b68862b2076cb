// Package config holds the firmware settings. Defaults describe the small
// reference board (QVGA canvas, 5 fps movies) and every value can be
// overridden through FISHCAM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig
	Camera    CameraConfig
	Display   DisplayConfig
	Storage   StorageConfig
	Input     InputConfig
	Liveview  LiveviewConfig
	Playback  PlaybackConfig
	Remote    RemoteConfig
	Telemetry TelemetryConfig
	Interval  IntervalConfig
	Sound     SoundConfig

	// MailboxDepth is the capacity of every module mailbox.
	MailboxDepth int
}

type LogConfig struct {
	Level string
}

type CameraConfig struct {
	Width  int
	Height int
	FPS    int
}

type DisplayConfig struct {
	Width  int
	Height int
}

type StorageConfig struct {
	MediaDir string
	Watch    bool
	// Journal is the JSON file listing recent captures. Empty disables it.
	Journal          string
	JournalRetention time.Duration
}

type InputConfig struct {
	PollInterval     time.Duration
	MaxRegistrations int
	CountsPerDetent  int
	GPIOChip         string

	// Pins are Raspberry Pi names such as GPIO5 or J8p29.
	PinMode    string
	PinCapture string
	PinOther   string
	PinDialA   string
	PinDialB   string
}

type LiveviewConfig struct {
	Quality         int
	QualityStep     int
	DialSensitivity int
	StillPrefix     string
	StillExt        string
	MoviePrefix     string
	MovieExt        string
	CounterStart    int
	MovieInterval   time.Duration
	StallFactor     int
	CurtainTime     time.Duration
	IndicatorTime   time.Duration
}

type PlaybackConfig struct {
	Root                 string
	OwnMovieInterval     time.Duration
	ForeignMovieInterval time.Duration
	DialSensitivity      int
}

type RemoteConfig struct {
	Enabled  bool
	Listen   string
	User     string
	Password string
	Timeout  time.Duration

	// SessionSecret signs the login cookie. Empty means a random key per boot.
	SessionSecret string
}

type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type IntervalConfig struct {
	Schedule string
	Location string
}

type SoundConfig struct {
	Dir     string
	Shutter string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Camera: CameraConfig{
			Width:  320,
			Height: 240,
			FPS:    15,
		},
		Display: DisplayConfig{
			Width:  320,
			Height: 240,
		},
		Storage: StorageConfig{
			MediaDir:         "./media",
			Watch:            true,
			Journal:          "./data/journal.json",
			JournalRetention: 24 * time.Hour,
		},
		Input: InputConfig{
			PollInterval:     50 * time.Millisecond,
			MaxRegistrations: 2,
			CountsPerDetent:  2,
			GPIOChip:         "gpiochip0",
			PinMode:          "GPIO5",
			PinCapture:       "GPIO6",
			PinOther:         "GPIO13",
			PinDialA:         "GPIO19",
			PinDialB:         "GPIO26",
		},
		Liveview: LiveviewConfig{
			Quality:         60,
			QualityStep:     10,
			DialSensitivity: 1,
			StillPrefix:     "IMG",
			StillExt:        ".JPG",
			MoviePrefix:     "MOV",
			MovieExt:        ".AVI",
			CounterStart:    0,
			MovieInterval:   200 * time.Millisecond,
			StallFactor:     3,
			CurtainTime:     200 * time.Millisecond,
			IndicatorTime:   300 * time.Millisecond,
		},
		Playback: PlaybackConfig{
			Root:                 "/",
			OwnMovieInterval:     200 * time.Millisecond,
			ForeignMovieInterval: 100 * time.Millisecond,
			DialSensitivity:      1,
		},
		Remote: RemoteConfig{
			Enabled: true,
			Listen:  ":8080",
			Timeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "otel-collector:4317",
			ServiceName: "fishcam",
		},
		Interval: IntervalConfig{
			Location: "Europe/Berlin",
		},
		Sound: SoundConfig{
			Dir:     "./sound-data",
			Shutter: "shutter.wav",
		},
		MailboxDepth: 16,
	}
}

// Load builds the configuration from defaults and environment overrides.
// Variables from the file named by FISHCAM_ENV_FILE (default .env) are
// applied first; variables already set in the environment win.
func Load() (*Config, error) {
	envFile := getEnvOrDefault("FISHCAM_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := Default()

	cfg.Log.Level = getEnvOrDefault("FISHCAM_LOG_LEVEL", cfg.Log.Level)

	cfg.Camera.FPS = getEnvAsIntOrDefault("FISHCAM_CAMERA_FPS", cfg.Camera.FPS)

	cfg.Storage.MediaDir = getEnvOrDefault("FISHCAM_MEDIA_DIR", cfg.Storage.MediaDir)
	cfg.Storage.Watch = getEnvAsBoolOrDefault("FISHCAM_MEDIA_WATCH", cfg.Storage.Watch)
	cfg.Storage.Journal = getEnvOrDefault("FISHCAM_JOURNAL", cfg.Storage.Journal)

	cfg.Input.PollInterval = getEnvAsDurationOrDefault("FISHCAM_INPUT_POLL", cfg.Input.PollInterval)
	cfg.Input.GPIOChip = getEnvOrDefault("FISHCAM_GPIO_CHIP", cfg.Input.GPIOChip)
	cfg.Input.PinMode = getEnvOrDefault("FISHCAM_PIN_MODE", cfg.Input.PinMode)
	cfg.Input.PinCapture = getEnvOrDefault("FISHCAM_PIN_CAPTURE", cfg.Input.PinCapture)
	cfg.Input.PinOther = getEnvOrDefault("FISHCAM_PIN_OTHER", cfg.Input.PinOther)
	cfg.Input.PinDialA = getEnvOrDefault("FISHCAM_PIN_DIAL_A", cfg.Input.PinDialA)
	cfg.Input.PinDialB = getEnvOrDefault("FISHCAM_PIN_DIAL_B", cfg.Input.PinDialB)

	cfg.Liveview.Quality = getEnvAsIntOrDefault("FISHCAM_JPEG_QUALITY", cfg.Liveview.Quality)
	cfg.Liveview.MovieInterval = getEnvAsDurationOrDefault("FISHCAM_MOVIE_INTERVAL", cfg.Liveview.MovieInterval)
	cfg.Liveview.CurtainTime = getEnvAsDurationOrDefault("FISHCAM_CURTAIN_TIME", cfg.Liveview.CurtainTime)
	cfg.Liveview.CounterStart = getEnvAsIntOrDefault("FISHCAM_COUNTER_START", cfg.Liveview.CounterStart)

	cfg.Playback.OwnMovieInterval = getEnvAsDurationOrDefault("FISHCAM_PLAY_INTERVAL", cfg.Playback.OwnMovieInterval)
	cfg.Playback.ForeignMovieInterval = getEnvAsDurationOrDefault("FISHCAM_PLAY_INTERVAL_FOREIGN", cfg.Playback.ForeignMovieInterval)

	cfg.Remote.Enabled = getEnvAsBoolOrDefault("FISHCAM_REMOTE", cfg.Remote.Enabled)
	cfg.Remote.Listen = getEnvOrDefault("FISHCAM_LISTEN", cfg.Remote.Listen)
	cfg.Remote.User = os.Getenv("FISHCAM_REMOTE_USER")
	cfg.Remote.Password = os.Getenv("FISHCAM_REMOTE_PASSWORD")
	cfg.Remote.SessionSecret = os.Getenv("FISHCAM_SESSION_SECRET")
	cfg.Remote.Timeout = getEnvAsDurationOrDefault("FISHCAM_REMOTE_TIMEOUT", cfg.Remote.Timeout)

	cfg.Telemetry.Enabled = getEnvAsBoolOrDefault("FISHCAM_TELEMETRY", cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = getEnvOrDefault("FISHCAM_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)

	cfg.Interval.Schedule = getEnvOrDefault("FISHCAM_INTERVAL", cfg.Interval.Schedule)
	cfg.Interval.Location = getEnvOrDefault("FISHCAM_INTERVAL_TZ", cfg.Interval.Location)

	cfg.Sound.Dir = getEnvOrDefault("FISHCAM_SOUND_DIR", cfg.Sound.Dir)
	cfg.Sound.Shutter = getEnvOrDefault("FISHCAM_SHUTTER_SOUND", cfg.Sound.Shutter)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// maxDialDivisor bounds the dial settings so their product stays small.
const maxDialDivisor = 100

// Validate checks the configuration for values the controllers cannot work with.
func (c *Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("display size %dx%d must be positive", c.Display.Width, c.Display.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera fps %d must be positive", c.Camera.FPS)
	}
	if c.Liveview.Quality < 1 || c.Liveview.Quality > 100 {
		return fmt.Errorf("jpeg quality %d out of range [1,100]", c.Liveview.Quality)
	}
	if c.Liveview.MovieInterval <= 0 || c.Playback.OwnMovieInterval <= 0 || c.Playback.ForeignMovieInterval <= 0 {
		return fmt.Errorf("frame intervals must be positive")
	}
	if c.Liveview.StallFactor < 1 {
		return fmt.Errorf("stall factor %d must be at least 1", c.Liveview.StallFactor)
	}
	if c.Liveview.CounterStart < 0 || c.Liveview.CounterStart > 999 {
		return fmt.Errorf("counter start %d out of range [0,999]", c.Liveview.CounterStart)
	}
	if len(c.Liveview.StillPrefix) == 0 || len(c.Liveview.MoviePrefix) == 0 {
		return fmt.Errorf("file prefixes must not be empty")
	}
	if c.Liveview.StillPrefix == c.Liveview.MoviePrefix && c.Liveview.StillExt == c.Liveview.MovieExt {
		return fmt.Errorf("still and movie files would share the name pattern %s", c.Liveview.StillPrefix)
	}
	if c.Input.PollInterval <= 0 {
		return fmt.Errorf("input poll interval must be positive")
	}
	if c.Input.MaxRegistrations < 1 {
		return fmt.Errorf("input registrations per control must be at least 1")
	}
	if c.Input.CountsPerDetent < 1 || c.Input.CountsPerDetent > maxDialDivisor {
		return fmt.Errorf("dial counts per detent %d out of range [1,%d]", c.Input.CountsPerDetent, maxDialDivisor)
	}
	if v := c.Liveview.DialSensitivity; v < 1 || v > maxDialDivisor {
		return fmt.Errorf("liveview dial sensitivity %d out of range [1,%d]", v, maxDialDivisor)
	}
	if v := c.Playback.DialSensitivity; v < 1 || v > maxDialDivisor {
		return fmt.Errorf("playback dial sensitivity %d out of range [1,%d]", v, maxDialDivisor)
	}
	if c.MailboxDepth < 1 {
		return fmt.Errorf("mailbox depth must be at least 1")
	}
	return nil
}

// getEnvOrDefault returns the environment variable or the default when unset.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
