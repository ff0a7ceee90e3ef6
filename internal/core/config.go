package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	yaml "go.yaml.in/yaml/v3"

	logx "wabbabot/pkg/logx"
)

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Storage  StorageConfig  `json:"storage"`
	Catalog  CatalogConfig  `json:"catalog"`
	Dispatch DispatchConfig `json:"dispatch"`
	Audit    AuditConfig    `json:"audit"`

	// Admins may register and delete modlists. Everyone else only gets
	// the subscription commands and releases of lists they author.
	Admins []string `json:"admins"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"file"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout"`
}

type StorageConfig struct {
	ModlistsPath string `json:"modlists_path"`
	ServersPath  string `json:"servers_path"`
}

type CatalogConfig struct {
	URL             string `json:"url"`
	Timeout         string `json:"timeout"`
	RefreshInterval string `json:"refresh_interval"`
}

type DispatchConfig struct {
	Workers    int `json:"workers"`
	RatePerSec int `json:"rate_per_sec"`
}

type AuditConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Storage.ModlistsPath) == "" {
		return errors.New("storage.modlists_path is required")
	}
	if strings.TrimSpace(c.Storage.ServersPath) == "" {
		return errors.New("storage.servers_path is required")
	}
	if strings.TrimSpace(c.Catalog.URL) == "" {
		return errors.New("catalog.url is required")
	}
	if c.Dispatch.Workers < 0 {
		return errors.New("dispatch.workers must be >= 0")
	}
	if c.Dispatch.RatePerSec < 0 {
		return errors.New("dispatch.rate_per_sec must be >= 0")
	}
	for _, field := range []struct{ name, val string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"catalog.timeout", c.Catalog.Timeout},
		{"catalog.refresh_interval", c.Catalog.RefreshInterval},
	} {
		if _, err := parseDurationOrZero(field.name, field.val); err != nil {
			return err
		}
	}
	return nil
}

func parseDurationOrZero(name, v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, v, err)
	}
	return d, nil
}

// ConfigManager loads the config file (YAML or JSON), validates it, and
// republishes it to subscribers when the file changes on disk.
type ConfigManager struct {
	path string
	log  logx.Logger

	mu   sync.RWMutex
	cfg  *Config
	subs []chan *Config
}

func NewConfigManager(path string, log logx.Logger) *ConfigManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ConfigManager{path: path, log: log}
}

func (m *ConfigManager) Load() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(string(jb)))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", m.path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", m.path, err)
	}

	m.mu.Lock()
	m.cfg = &cfg
	m.mu.Unlock()
	return &cfg, nil
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *ConfigManager) Subscribe(buffer int) <-chan *Config {
	ch := make(chan *Config, buffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *ConfigManager) publish(cfg *Config) {
	m.mu.RLock()
	subs := append([]chan *Config{}, m.subs...)
	m.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- cfg:
		default:
			// drop for slow subscribers
		}
	}
}

// Watch re-reads the file on change. Invalid new content is rejected and
// the running config stays in effect.
func (m *ConfigManager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	// debounce to avoid observing partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			cfg, err := m.Load()
			if err != nil {
				m.log.Warn("config reload rejected", logx.Err(err))
				return
			}
			m.publish(cfg)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.Events:
			if ev.Name == filepath.Join(dir, file) {
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			}
		case <-w.Errors:
			// keep watching
		}
	}
}

// coerceToJSONBytes converts YAML config to JSON bytes so the strict JSON
// decoder (DisallowUnknownFields) covers both formats.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
