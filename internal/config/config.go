// Package config loads and hot-reloads the pgwire-check YAML
// configuration: the set of PostgreSQL targets to dial and how to
// authenticate against each.
package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level pgwire-check configuration.
type Config struct {
	Listen  ListenConfig            `yaml:"listen"`
	Checks  CheckDefaults           `yaml:"checks"`
	Targets map[string]TargetConfig `yaml:"targets"`
}

// ListenConfig defines where the API/metrics HTTP server binds.
type ListenConfig struct {
	APIPort int    `yaml:"api_port"`
	APIBind string `yaml:"api_bind"`
}

// CheckDefaults are applied to any TargetConfig that doesn't override them.
type CheckDefaults struct {
	Interval      time.Duration `yaml:"interval"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	FailThreshold int           `yaml:"fail_threshold"`
}

// TargetConfig describes one PostgreSQL server to periodically dial and
// handshake against.
type TargetConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"dbname"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// RequireTLS demands the server accept SSLRequest; if it replies 'N',
	// the check counts as a failure instead of falling back to cleartext.
	RequireTLS bool `yaml:"require_tls"`

	Interval      *time.Duration `yaml:"interval,omitempty"`
	DialTimeout   *time.Duration `yaml:"dial_timeout,omitempty"`
	FailThreshold *int           `yaml:"fail_threshold,omitempty"`
}

// EffectiveInterval returns the target's recheck interval or the default.
func (t TargetConfig) EffectiveInterval(defaults CheckDefaults) time.Duration {
	if t.Interval != nil {
		return *t.Interval
	}
	return defaults.Interval
}

// EffectiveDialTimeout returns the target's dial timeout or the default.
func (t TargetConfig) EffectiveDialTimeout(defaults CheckDefaults) time.Duration {
	if t.DialTimeout != nil {
		return *t.DialTimeout
	}
	return defaults.DialTimeout
}

// EffectiveFailThreshold returns the target's failure threshold or the default.
func (t TargetConfig) EffectiveFailThreshold(defaults CheckDefaults) int {
	if t.FailThreshold != nil {
		return *t.FailThreshold
	}
	return defaults.FailThreshold
}

// Redacted returns a copy of t with Password masked, safe to log or serve
// over the status API.
func (t TargetConfig) Redacted() TargetConfig {
	c := t
	if c.Password != "" {
		c.Password = "***REDACTED***"
	}
	return c
}

// Addr returns "host:port" for dialing.
func (t TargetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable
// values, leaving unset variables untouched so a typo is visible in the
// parsed config rather than silently becoming an empty string.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, substituting ${VAR} references
// against the process environment before applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.APIPort == 0 {
		cfg.Listen.APIPort = 8080
	}
	if cfg.Listen.APIBind == "" {
		cfg.Listen.APIBind = "127.0.0.1"
	}
	if cfg.Checks.Interval == 0 {
		cfg.Checks.Interval = 30 * time.Second
	}
	if cfg.Checks.DialTimeout == 0 {
		cfg.Checks.DialTimeout = 5 * time.Second
	}
	if cfg.Checks.FailThreshold == 0 {
		cfg.Checks.FailThreshold = 3
	}
}

func validate(cfg *Config) error {
	for name, target := range cfg.Targets {
		if target.Host == "" {
			return fmt.Errorf("target %q: host is required", name)
		}
		if target.Port == 0 {
			return fmt.Errorf("target %q: port is required", name)
		}
		if target.Username == "" {
			return fmt.Errorf("target %q: username is required", name)
		}
	}
	return nil
}

// Watcher watches a config file for changes and calls the callback with the new config.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	// Debounce timer to avoid rapid reloads
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cw.reload()
				})
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		log.Printf("[config] hot-reload failed: %v", err)
		return
	}

	log.Printf("[config] configuration reloaded from %s", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
