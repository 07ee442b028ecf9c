package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full appliance configuration, loaded once at startup and
// read-only afterwards.
type Config struct {
	Audio          AudioConfig     `mapstructure:"audio" yaml:"audio"`
	Recording      RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Sounds         SoundsConfig    `mapstructure:"sounds" yaml:"sounds"`
	Hook           SwitchConfig    `mapstructure:"hook" yaml:"hook"`
	RecordGreeting SwitchConfig    `mapstructure:"record_greeting" yaml:"record_greeting"`
	Shutdown       ShutdownConfig  `mapstructure:"shutdown" yaml:"shutdown"`
	Archive        ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Logging        LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// AudioConfig describes the ALSA capture/render parameters handed to the
// external audio tools.
type AudioConfig struct {
	Device       string `mapstructure:"device" yaml:"device"`
	Format       string `mapstructure:"format" yaml:"format"`
	FileType     string `mapstructure:"file_type" yaml:"file_type"`
	SampleRate   int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels     int    `mapstructure:"channels" yaml:"channels"`
	MixerControl string `mapstructure:"mixer_control" yaml:"mixer_control"`
}

type RecordingConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	// Limit is the maximum message length in seconds. It arms the state
	// machine's timer and is also passed to the capture tool as its own
	// duration bound.
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type SoundsConfig struct {
	Greeting     SoundConfig `mapstructure:"greeting" yaml:"greeting"`
	Beep         BeepConfig  `mapstructure:"beep" yaml:"beep"`
	TimeExceeded SoundConfig `mapstructure:"time_exceeded" yaml:"time_exceeded"`
}

// SoundConfig describes one playable clip.
type SoundConfig struct {
	File       string        `mapstructure:"file" yaml:"file"`
	Volume     float64       `mapstructure:"volume" yaml:"volume"`
	StartDelay time.Duration `mapstructure:"start_delay" yaml:"start_delay"`
}

// BeepConfig adds the include_in_message flag. The flag is informational:
// the greeting, beep, record-start ordering is fixed either way.
type BeepConfig struct {
	File             string        `mapstructure:"file" yaml:"file"`
	Volume           float64       `mapstructure:"volume" yaml:"volume"`
	StartDelay       time.Duration `mapstructure:"start_delay" yaml:"start_delay"`
	IncludeInMessage bool          `mapstructure:"include_in_message" yaml:"include_in_message"`
}

// SwitchConfig describes a debounced GPIO switch. GPIO 0 disables the
// control entirely.
type SwitchConfig struct {
	GPIO       int           `mapstructure:"gpio" yaml:"gpio"`
	Type       string        `mapstructure:"type" yaml:"type"` // "NC" or "NO"
	Invert     bool          `mapstructure:"invert" yaml:"invert"`
	BounceTime time.Duration `mapstructure:"bounce_time" yaml:"bounce_time"`
}

type ShutdownConfig struct {
	GPIO     int           `mapstructure:"gpio" yaml:"gpio"`
	HoldTime time.Duration `mapstructure:"hold_time" yaml:"hold_time"`
}

type ArchiveConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns the configuration the appliance ships with.
func Default() *Config {
	home := os.Getenv("HOME")
	return &Config{
		Audio: AudioConfig{
			Device:       "hw:0,0",
			Format:       "cd",
			FileType:     "wav",
			SampleRate:   44100,
			Channels:     1,
			MixerControl: "Speaker",
		},
		Recording: RecordingConfig{
			Directory: filepath.Join(home, "guestbook", "recordings"),
			Limit:     30,
		},
		Sounds: SoundsConfig{
			Greeting: SoundConfig{
				File:   filepath.Join(home, "guestbook", "sounds", "greeting.wav"),
				Volume: 1.0,
			},
			Beep: BeepConfig{
				File:             filepath.Join(home, "guestbook", "sounds", "beep.wav"),
				Volume:           1.0,
				IncludeInMessage: true,
			},
			TimeExceeded: SoundConfig{
				File:   filepath.Join(home, "guestbook", "sounds", "time_exceeded.wav"),
				Volume: 1.0,
			},
		},
		Hook: SwitchConfig{
			GPIO:       17,
			Type:       "NC",
			BounceTime: 100 * time.Millisecond,
		},
		RecordGreeting: SwitchConfig{
			GPIO:       27,
			Type:       "NC",
			BounceTime: 100 * time.Millisecond,
		},
		Shutdown: ShutdownConfig{
			GPIO:     22,
			HoldTime: 2 * time.Second,
		},
		Archive: ArchiveConfig{
			Directory: filepath.Join(home, "guestbook", "archive"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load reads and validates the configuration file. A missing or invalid
// file is the appliance's only fatal startup condition, so errors here are
// returned to the caller and terminate the process.
func Load(configFile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("GUESTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Recording.Directory = expandPath(cfg.Recording.Directory)
	cfg.Archive.Directory = expandPath(cfg.Archive.Directory)
	cfg.Sounds.Greeting.File = expandPath(cfg.Sounds.Greeting.File)
	cfg.Sounds.Beep.File = expandPath(cfg.Sounds.Beep.File)
	cfg.Sounds.TimeExceeded.File = expandPath(cfg.Sounds.TimeExceeded.File)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key with viper so environment overrides work
// even when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("audio.device", d.Audio.Device)
	v.SetDefault("audio.format", d.Audio.Format)
	v.SetDefault("audio.file_type", d.Audio.FileType)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.mixer_control", d.Audio.MixerControl)

	v.SetDefault("recording.directory", d.Recording.Directory)
	v.SetDefault("recording.limit", d.Recording.Limit)

	v.SetDefault("sounds.greeting.file", d.Sounds.Greeting.File)
	v.SetDefault("sounds.greeting.volume", d.Sounds.Greeting.Volume)
	v.SetDefault("sounds.greeting.start_delay", d.Sounds.Greeting.StartDelay)
	v.SetDefault("sounds.beep.file", d.Sounds.Beep.File)
	v.SetDefault("sounds.beep.volume", d.Sounds.Beep.Volume)
	v.SetDefault("sounds.beep.start_delay", d.Sounds.Beep.StartDelay)
	v.SetDefault("sounds.beep.include_in_message", d.Sounds.Beep.IncludeInMessage)
	v.SetDefault("sounds.time_exceeded.file", d.Sounds.TimeExceeded.File)
	v.SetDefault("sounds.time_exceeded.volume", d.Sounds.TimeExceeded.Volume)
	v.SetDefault("sounds.time_exceeded.start_delay", d.Sounds.TimeExceeded.StartDelay)

	v.SetDefault("hook.gpio", d.Hook.GPIO)
	v.SetDefault("hook.type", d.Hook.Type)
	v.SetDefault("hook.invert", d.Hook.Invert)
	v.SetDefault("hook.bounce_time", d.Hook.BounceTime)

	v.SetDefault("record_greeting.gpio", d.RecordGreeting.GPIO)
	v.SetDefault("record_greeting.type", d.RecordGreeting.Type)
	v.SetDefault("record_greeting.invert", d.RecordGreeting.Invert)
	v.SetDefault("record_greeting.bounce_time", d.RecordGreeting.BounceTime)

	v.SetDefault("shutdown.gpio", d.Shutdown.GPIO)
	v.SetDefault("shutdown.hold_time", d.Shutdown.HoldTime)

	v.SetDefault("archive.directory", d.Archive.Directory)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
}

// Validate checks the configuration for values the appliance cannot start
// with.
func (c *Config) Validate() error {
	if c.Audio.Device == "" {
		return fmt.Errorf("audio.device is required")
	}
	if c.Audio.Format == "" {
		return fmt.Errorf("audio.format is required")
	}
	if c.Audio.FileType == "" {
		return fmt.Errorf("audio.file_type is required")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("audio.channels must be >= 1, got: %d", c.Audio.Channels)
	}
	if c.Audio.MixerControl == "" {
		return fmt.Errorf("audio.mixer_control is required")
	}

	if c.Recording.Directory == "" {
		return fmt.Errorf("recording.directory is required")
	}
	if c.Recording.Limit <= 0 {
		return fmt.Errorf("recording.limit must be > 0 seconds, got: %d", c.Recording.Limit)
	}

	if err := validateSound("sounds.greeting", c.Sounds.Greeting.File, c.Sounds.Greeting.Volume, c.Sounds.Greeting.StartDelay); err != nil {
		return err
	}
	if err := validateSound("sounds.beep", c.Sounds.Beep.File, c.Sounds.Beep.Volume, c.Sounds.Beep.StartDelay); err != nil {
		return err
	}
	if err := validateSound("sounds.time_exceeded", c.Sounds.TimeExceeded.File, c.Sounds.TimeExceeded.Volume, c.Sounds.TimeExceeded.StartDelay); err != nil {
		return err
	}

	if err := validateSwitch("hook", c.Hook); err != nil {
		return err
	}
	if err := validateSwitch("record_greeting", c.RecordGreeting); err != nil {
		return err
	}

	if c.Shutdown.GPIO < 0 {
		return fmt.Errorf("shutdown.gpio must be >= 0, got: %d", c.Shutdown.GPIO)
	}
	if c.Shutdown.GPIO != 0 && c.Shutdown.HoldTime <= 0 {
		return fmt.Errorf("shutdown.hold_time must be > 0, got: %s", c.Shutdown.HoldTime)
	}

	if err := validatePinsDistinct(c); err != nil {
		return err
	}

	if c.Archive.Directory == "" {
		return fmt.Errorf("archive.directory is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got: %s", c.Logging.Level)
	}
	if c.Logging.File != "" {
		if c.Logging.MaxSizeMB <= 0 {
			return fmt.Errorf("logging.max_size_mb must be > 0, got: %d", c.Logging.MaxSizeMB)
		}
		if c.Logging.MaxBackups < 0 {
			return fmt.Errorf("logging.max_backups must be >= 0, got: %d", c.Logging.MaxBackups)
		}
	}

	return nil
}

func validateSound(prefix, file string, volume float64, startDelay time.Duration) error {
	if file == "" {
		return fmt.Errorf("%s.file is required", prefix)
	}
	if volume < 0 || volume > 1 {
		return fmt.Errorf("%s.volume must be between 0.0 and 1.0, got: %.2f", prefix, volume)
	}
	if startDelay < 0 {
		return fmt.Errorf("%s.start_delay must be >= 0, got: %s", prefix, startDelay)
	}
	return nil
}

func validateSwitch(prefix string, sw SwitchConfig) error {
	if sw.GPIO < 0 {
		return fmt.Errorf("%s.gpio must be >= 0, got: %d", prefix, sw.GPIO)
	}
	if sw.GPIO == 0 {
		// Control disabled, remaining fields are irrelevant.
		return nil
	}
	if sw.Type != "NC" && sw.Type != "NO" {
		return fmt.Errorf("%s.type must be 'NC' or 'NO', got: %s", prefix, sw.Type)
	}
	if sw.BounceTime < 0 {
		return fmt.Errorf("%s.bounce_time must be >= 0, got: %s", prefix, sw.BounceTime)
	}
	return nil
}

func validatePinsDistinct(c *Config) error {
	used := map[int]string{}
	for _, p := range []struct {
		name string
		pin  int
	}{
		{"hook.gpio", c.Hook.GPIO},
		{"record_greeting.gpio", c.RecordGreeting.GPIO},
		{"shutdown.gpio", c.Shutdown.GPIO},
	} {
		if p.pin == 0 {
			continue
		}
		if other, ok := used[p.pin]; ok {
			return fmt.Errorf("%s and %s are both assigned GPIO %d", other, p.name, p.pin)
		}
		used[p.pin] = p.name
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
