package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/secfunded/stackd/internal/env"
	"github.com/secfunded/stackd/internal/logger"
	"github.com/secfunded/stackd/internal/probe"
	"github.com/secfunded/stackd/internal/service"
)

// Defaults mirror the stack this tool grew up supervising: an API server on
// :8000 with /api/health and a dashboard on :8501.
const (
	DefaultBackendProbeURL  = "http://127.0.0.1:8000/api/health"
	DefaultFrontendProbeURL = "http://127.0.0.1:8501/"
	DefaultProbeAttempts    = 30
	DefaultProbeInterval    = 2 * time.Second
	DefaultMaxRestarts      = 3
	DefaultMonitorTick      = 10 * time.Second
	DefaultLogDir           = "logs"
	DefaultAdminListen      = "127.0.0.1:9301"
)

// Credential and wiring variables the services expect at runtime. The
// supervisor only checks presence, never content.
var preflightVars = []string{"DB_USERNAME", "DB_PASSWORD", "API_BASE_URL"}

// FileConfig is the top-level TOML structure (stackd.toml).
type FileConfig struct {
	Env      []string       `toml:"env" mapstructure:"env"`
	EnvFiles []string       `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool           `toml:"use_os_env" mapstructure:"use_os_env"`
	LogDir   string         `toml:"log_dir" mapstructure:"log_dir"`
	Backend  ServiceConfig  `toml:"backend" mapstructure:"backend"`
	Frontend ServiceConfig  `toml:"frontend" mapstructure:"frontend"`
	Monitor  MonitorConfig  `toml:"monitor" mapstructure:"monitor"`
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Store    StoreConfig    `toml:"store" mapstructure:"store"`
	Log      *logger.Config `toml:"log" mapstructure:"log"`
}

type ServiceConfig struct {
	Command     string         `toml:"command" mapstructure:"command"`
	WorkDir     string         `toml:"workdir" mapstructure:"workdir"`
	Env         []string       `toml:"env" mapstructure:"env"`
	PIDFile     string         `toml:"pidfile" mapstructure:"pidfile"`
	MaxRestarts *int           `toml:"max_restarts" mapstructure:"max_restarts"`
	Probe       ProbeConfig    `toml:"probe" mapstructure:"probe"`
	Log         *logger.Config `toml:"log" mapstructure:"log"`
}

type ProbeConfig struct {
	URL         string        `toml:"url" mapstructure:"url"`
	MaxAttempts int           `toml:"max_attempts" mapstructure:"max_attempts"`
	Interval    time.Duration `toml:"interval" mapstructure:"interval"`
	Timeout     time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type MonitorConfig struct {
	Tick     time.Duration `toml:"tick" mapstructure:"tick"`
	StopWait time.Duration `toml:"stop_wait" mapstructure:"stop_wait"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type StoreConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

// Load reads and defaults a stackd.toml. Only the two service commands are
// strictly required.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	if err := fc.applyDefaults(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (fc *FileConfig) applyDefaults() error {
	if strings.TrimSpace(fc.Backend.Command) == "" {
		return fmt.Errorf("backend.command is required")
	}
	if strings.TrimSpace(fc.Frontend.Command) == "" {
		return fmt.Errorf("frontend.command is required")
	}
	if fc.LogDir == "" {
		fc.LogDir = DefaultLogDir
	}
	if fc.Monitor.Tick <= 0 {
		fc.Monitor.Tick = DefaultMonitorTick
	}
	if fc.Monitor.StopWait <= 0 {
		fc.Monitor.StopWait = 5 * time.Second
	}
	if fc.Server.Listen == "" {
		fc.Server.Listen = DefaultAdminListen
	}
	if fc.Store.Path == "" {
		fc.Store.Path = filepath.Join(fc.LogDir, "stackd.db")
	}
	defaultService(&fc.Backend, "backend", fc.LogDir, DefaultBackendProbeURL)
	defaultService(&fc.Frontend, "frontend", fc.LogDir, DefaultFrontendProbeURL)
	return nil
}

func defaultService(sc *ServiceConfig, name, logDir, probeURL string) {
	if sc.PIDFile == "" {
		sc.PIDFile = filepath.Join(logDir, name+".pid")
	}
	if sc.MaxRestarts == nil {
		n := DefaultMaxRestarts
		sc.MaxRestarts = &n
	}
	if sc.Probe.URL == "" {
		sc.Probe.URL = probeURL
	}
	if sc.Probe.MaxAttempts <= 0 {
		sc.Probe.MaxAttempts = DefaultProbeAttempts
	}
	if sc.Probe.Interval <= 0 {
		sc.Probe.Interval = DefaultProbeInterval
	}
	if sc.Probe.Timeout <= 0 {
		sc.Probe.Timeout = probe.DefaultTimeout
	}
}

// Spec materializes a service.Spec for one slot, layering the global log
// config under any per-service override.
func (fc *FileConfig) Spec(name string) service.Spec {
	sc := &fc.Backend
	essential := true
	if name == "frontend" {
		sc = &fc.Frontend
		essential = false
	}
	logCfg := logger.Config{Dir: fc.LogDir}
	if fc.Log != nil {
		logCfg = *fc.Log
		if logCfg.Dir == "" {
			logCfg.Dir = fc.LogDir
		}
	}
	if sc.Log != nil {
		if sc.Log.Dir != "" {
			logCfg.Dir = sc.Log.Dir
		}
		if sc.Log.Path != "" {
			logCfg.Path = sc.Log.Path
		}
		if sc.Log.MaxSizeMB > 0 {
			logCfg.MaxSizeMB = sc.Log.MaxSizeMB
		}
		if sc.Log.MaxBackups > 0 {
			logCfg.MaxBackups = sc.Log.MaxBackups
		}
		if sc.Log.MaxAgeDays > 0 {
			logCfg.MaxAgeDays = sc.Log.MaxAgeDays
		}
		if sc.Log.Compress {
			logCfg.Compress = true
		}
	}
	return service.Spec{
		Name:        name,
		Command:     sc.Command,
		WorkDir:     sc.WorkDir,
		Env:         sc.Env,
		PIDFile:     sc.PIDFile,
		Essential:   essential,
		MaxRestarts: *sc.MaxRestarts,
		Log:         logCfg,
	}
}

// ProbeFor materializes the readiness probe for one slot.
func (fc *FileConfig) ProbeFor(name string) probe.Probe {
	pc := fc.Backend.Probe
	if name == "frontend" {
		pc = fc.Frontend.Probe
	}
	return probe.Probe{
		URL:         pc.URL,
		MaxAttempts: pc.MaxAttempts,
		Interval:    pc.Interval,
		Timeout:     pc.Timeout,
	}
}

// BuildEnv composes the launch environment: OS env (when use_os_env), then
// env_files in order, then the top-level env list last.
func (fc *FileConfig) BuildEnv() (*env.Env, error) {
	e := env.New()
	if fc.UseOSEnv {
		e.FromOS()
	} else {
		e.EmptyBase()
	}
	for _, p := range fc.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			e.Set(k, v)
		}
	}
	for _, kv := range fc.Env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
	return e, nil
}

// Preflight returns one warning per expected-but-missing environment
// variable. The default policy is warn-only: the services themselves fail
// loudly at runtime if credentials are genuinely required.
func Preflight(e *env.Env) []string {
	var warnings []string
	for _, key := range preflightVars {
		if v, ok := e.Lookup(key); !ok || strings.TrimSpace(v) == "" {
			warnings = append(warnings, fmt.Sprintf("environment variable %s is not set", key))
		}
	}
	return warnings
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
