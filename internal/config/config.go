// Package config loads host configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/taskgraph/internal/logging"
	"github.com/petrijr/taskgraph/internal/nav"
	"github.com/petrijr/taskgraph/internal/persistence"
)

// Config is the host configuration.
type Config struct {
	Log LogConfig `yaml:"log"`

	// Workers is the number of path-planning goroutines.
	Workers int `yaml:"workers"`

	// QueueCapacity bounds pending path requests.
	QueueCapacity int `yaml:"queue_capacity"`

	// TickParallelism is the number of entities ticked concurrently. 1
	// ticks in entity order on the calling goroutine.
	TickParallelism int `yaml:"tick_parallelism"`

	Store StoreConfig `yaml:"store"`

	// Nav configures the path-planning grid. Without it paths are straight
	// lines.
	Nav *NavConfig `yaml:"nav"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"`
	DSN        string `yaml:"dsn"`
	Prefix     string `yaml:"prefix"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// NavConfig describes the walkability grid used to plan paths. Blocked
// lists [col, row] pairs.
type NavConfig struct {
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	CellSize float64 `yaml:"cell_size"`
	Blocked  [][]int `yaml:"blocked"`
}

// Default returns the configuration used for omitted settings.
func Default() Config {
	return Config{
		Log:             LogConfig{Level: "info", Format: logging.FormatText},
		Workers:         2,
		QueueCapacity:   1024,
		TickParallelism: 1,
		Store:           StoreConfig{Backend: persistence.BackendMemory},
	}
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays the YAML document on Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative"))
	}
	if c.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("queue_capacity must not be negative"))
	}
	if c.TickParallelism < 1 {
		errs = append(errs, fmt.Errorf("tick_parallelism must be at least 1"))
	}

	switch strings.ToLower(c.Store.Backend) {
	case "", persistence.BackendMemory, persistence.BackendSQLite:
	case persistence.BackendPostgres, persistence.BackendRedis, persistence.BackendMongo:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store backend %s needs a dsn", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	if n := c.Nav; n != nil {
		if n.Width <= 0 || n.Height <= 0 {
			errs = append(errs, fmt.Errorf("nav grid must be at least 1x1"))
		}
		if n.CellSize <= 0 {
			errs = append(errs, fmt.Errorf("nav cell_size must be positive"))
		}
		for _, b := range n.Blocked {
			if len(b) != 2 {
				errs = append(errs, fmt.Errorf("blocked cell %v must be [col, row]", b))
				continue
			}
			if b[0] < 0 || b[1] < 0 || b[0] >= n.Width || b[1] >= n.Height {
				errs = append(errs, fmt.Errorf("blocked cell %v outside grid", b))
			}
		}
	}
	return errors.Join(errs...)
}

// Options converts the store section for persistence.Open.
func (s StoreConfig) Options() persistence.Options {
	return persistence.Options{
		Backend:    s.Backend,
		DSN:        s.DSN,
		Prefix:     s.Prefix,
		Database:   s.Database,
		Collection: s.Collection,
	}
}

// Grid builds the navigation grid described by n.
func (n NavConfig) Grid() *nav.Grid {
	g := nav.NewGrid(n.Width, n.Height, n.CellSize)
	for _, b := range n.Blocked {
		if len(b) == 2 {
			g.Block(nav.Cell{Col: b[0], Row: b[1]})
		}
	}
	return g
}
