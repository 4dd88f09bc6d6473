package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	defaultNamespacePrefix = "org.mpris.MediaPlayer2."
	defaultCallTimeout     = 3 * time.Second
	defaultUpdateCapacity  = 10
	defaultLogLevel        = "info"
)

// Options are the tunables read from config.yaml. Every field is optional.
type Options struct {
	NamespacePrefix string        `yaml:"namespace_prefix"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	UpdateCapacity  int           `yaml:"update_capacity"`
	LogLevel        string        `yaml:"log_level"`
}

func DefaultOptions() Options {
	return Options{
		NamespacePrefix: defaultNamespacePrefix,
		CallTimeout:     defaultCallTimeout,
		UpdateCapacity:  defaultUpdateCapacity,
		LogLevel:        defaultLogLevel,
	}
}

// LoadOptions reads path over the defaults. A missing file is not an error.
func LoadOptions(path string) (Options, error) {
	options := DefaultOptions()

	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return options, nil
	}
	if err != nil {
		return Options{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(body, &options); err != nil {
		return Options{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := options.normalize(); err != nil {
		return Options{}, fmt.Errorf("config %s: %w", path, err)
	}

	return options, nil
}

// SlogLevel maps LogLevel onto a slog level.
func (o Options) SlogLevel() slog.Level {
	level, _ := parseLevel(o.LogLevel)
	return level
}

// RestartRequired lists the keys that differ in next but only take effect on
// the next start. Everything except log_level is read once at startup.
func (o Options) RestartRequired(next Options) []string {
	var keys []string
	if next.NamespacePrefix != o.NamespacePrefix {
		keys = append(keys, "namespace_prefix")
	}
	if next.CallTimeout != o.CallTimeout {
		keys = append(keys, "call_timeout")
	}
	if next.UpdateCapacity != o.UpdateCapacity {
		keys = append(keys, "update_capacity")
	}
	return keys
}

func (o *Options) normalize() error {
	o.NamespacePrefix = strings.TrimSpace(o.NamespacePrefix)
	if o.NamespacePrefix == "" {
		o.NamespacePrefix = defaultNamespacePrefix
	}
	if !strings.HasSuffix(o.NamespacePrefix, ".") {
		o.NamespacePrefix += "."
	}

	if o.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", o.CallTimeout)
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = defaultCallTimeout
	}

	if o.UpdateCapacity < 0 {
		return fmt.Errorf("update_capacity must be positive, got %d", o.UpdateCapacity)
	}
	if o.UpdateCapacity == 0 {
		o.UpdateCapacity = defaultUpdateCapacity
	}

	o.LogLevel = strings.ToLower(strings.TrimSpace(o.LogLevel))
	if o.LogLevel == "" {
		o.LogLevel = defaultLogLevel
	}
	if _, err := parseLevel(o.LogLevel); err != nil {
		return err
	}

	return nil
}

func parseLevel(value string) (slog.Level, error) {
	switch value {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", value)
	}
}

// WatchOptions reloads path whenever it is written or recreated and passes
// the result to onChange. Invalid files are logged and skipped. It returns
// when ctx is done. Only log_level can be applied live; see RestartRequired.
func WatchOptions(ctx context.Context, path string, logger *slog.Logger, onChange func(Options)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}

			options, err := LoadOptions(path)
			if err != nil {
				logger.Warn("ignoring invalid config", "path", path, "error", err)
				continue
			}
			onChange(options)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
