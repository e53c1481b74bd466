// Package config loads docgraph settings from file, environment and
// defaults.
package config

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	dgerr "github.com/dshills/docgraph/pkg/errors"
)

// Config is the top-level docgraph configuration.
type Config struct {
	BaseDir   string          `mapstructure:"base_dir"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Roots     RootsConfig     `mapstructure:"roots"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Index     IndexConfig     `mapstructure:"index"`
	Search    SearchConfig    `mapstructure:"search"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Retention RetentionConfig `mapstructure:"retention"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RootsConfig names the three source trees, relative to BaseDir unless
// absolute. An empty root is not indexed.
type RootsConfig struct {
	Tasks    string `mapstructure:"tasks"`
	Memories string `mapstructure:"memories"`
	Docs     string `mapstructure:"docs"`
}

// HTTPConfig controls the HTTP listener.
type HTTPConfig struct {
	Listen       string        `mapstructure:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// IndexConfig tunes indexing runs.
type IndexConfig struct {
	Workers     int           `mapstructure:"workers"`
	FileTimeout time.Duration `mapstructure:"file_timeout"`
}

// SearchConfig bounds search requests and their cache.
type SearchConfig struct {
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	CacheSize    int           `mapstructure:"cache_size"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type GraphConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type RetentionConfig struct {
	KeepSessionLogs int `mapstructure:"keep_session_logs"`
}

// ScheduleConfig holds five-field cron expressions. An empty expression
// disables that job.
type ScheduleConfig struct {
	Index     string `mapstructure:"index"`
	Infer     string `mapstructure:"infer"`
	Retention string `mapstructure:"retention"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// CronParser accepts standard five-field expressions and @descriptors.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_dir", ".")
	v.SetDefault("database.path", "docgraph.db")
	v.SetDefault("roots.tasks", "tasks")
	v.SetDefault("roots.memories", "memories")
	v.SetDefault("roots.docs", "docs")
	v.SetDefault("http.listen", "127.0.0.1:8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("index.workers", 1)
	v.SetDefault("index.file_timeout", "30s")
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 20)
	v.SetDefault("search.cache_size", 100)
	v.SetDefault("search.cache_ttl", "5m")
	v.SetDefault("graph.cache_ttl", "1m")
	v.SetDefault("retention.keep_session_logs", 90)
	v.SetDefault("schedule.index", "*/15 * * * *")
	v.SetDefault("schedule.infer", "*/30 * * * *")
	v.SetDefault("schedule.retention", "0 3 * * *")
	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.debounce", "2s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix DOCGRAPH_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("DOCGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, dgerr.Errorf(dgerr.CodeConfigReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, dgerr.Errorf(dgerr.CodeConfigInvalid, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, dgerr.Errorf(dgerr.CodeConfigInvalid, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// RootPaths returns the configured roots resolved against BaseDir, in
// tasks, memories, docs order.
func (c *Config) RootPaths() []string {
	var roots []string
	for _, r := range []string{c.Roots.Tasks, c.Roots.Memories, c.Roots.Docs} {
		if r == "" {
			continue
		}
		roots = append(roots, c.Resolve(r))
	}
	return roots
}

// Resolve joins a relative path onto BaseDir.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.BaseDir, p)
}

// Validate checks the configuration for logical errors.
// It returns every problem found rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateHTTP()...)
	errs = append(errs, c.validateLimits()...)
	errs = append(errs, c.validateSchedule()...)

	return errs
}

func invalid(format string, args ...any) error {
	return dgerr.Errorf(dgerr.CodeConfigInvalid, format, args...)
}

func (c *Config) validatePaths() []error {
	var errs []error

	if c.BaseDir == "" {
		errs = append(errs, invalid("config: base_dir must not be empty"))
	}
	if c.Database.Path == "" {
		errs = append(errs, invalid("config: database.path must not be empty"))
	}
	if c.Roots.Tasks == "" && c.Roots.Memories == "" && c.Roots.Docs == "" {
		errs = append(errs, invalid("config: at least one of roots.tasks, roots.memories, roots.docs must be set"))
	}

	return errs
}

func (c *Config) validateHTTP() []error {
	var errs []error

	if c.HTTP.Listen == "" {
		return append(errs, invalid("config: http.listen must not be empty"))
	}

	_, portStr, err := net.SplitHostPort(c.HTTP.Listen)
	if err != nil {
		return append(errs, invalid("config: http.listen must be a valid host:port address, got %q: %w", c.HTTP.Listen, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("config: http.listen port must be a number, got %q", portStr))
	} else if port < 0 || port > 65535 {
		errs = append(errs, invalid("config: http.listen port must be between 0 and 65535, got %d", port))
	}

	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 {
		errs = append(errs, invalid("config: http timeouts must not be negative"))
	}

	return errs
}

func (c *Config) validateLimits() []error {
	var errs []error

	if c.Index.Workers < 1 {
		errs = append(errs, invalid("config: index.workers must be at least 1, got %d", c.Index.Workers))
	}
	if c.Index.FileTimeout <= 0 {
		errs = append(errs, invalid("config: index.file_timeout must be positive, got %s", c.Index.FileTimeout))
	}
	if c.Search.MaxLimit < 1 {
		errs = append(errs, invalid("config: search.max_limit must be at least 1, got %d", c.Search.MaxLimit))
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, invalid("config: search.default_limit must be between 1 and search.max_limit, got %d", c.Search.DefaultLimit))
	}
	if c.Search.CacheSize < 0 {
		errs = append(errs, invalid("config: search.cache_size must not be negative, got %d", c.Search.CacheSize))
	}
	if c.Graph.CacheTTL < 0 {
		errs = append(errs, invalid("config: graph.cache_ttl must not be negative, got %s", c.Graph.CacheTTL))
	}
	if c.Retention.KeepSessionLogs < 0 {
		errs = append(errs, invalid("config: retention.keep_session_logs must not be negative, got %d", c.Retention.KeepSessionLogs))
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		errs = append(errs, invalid("config: watch.debounce must be positive when watching, got %s", c.Watch.Debounce))
	}

	return errs
}

func (c *Config) validateSchedule() []error {
	var errs []error

	jobs := []struct{ key, expr string }{
		{"schedule.index", c.Schedule.Index},
		{"schedule.infer", c.Schedule.Infer},
		{"schedule.retention", c.Schedule.Retention},
	}
	for _, job := range jobs {
		if job.expr == "" {
			continue
		}
		if _, err := CronParser.Parse(job.expr); err != nil {
			errs = append(errs, invalid("config: %s is not a valid cron expression %q: %w", job.key, job.expr, err))
		}
	}

	return errs
}
