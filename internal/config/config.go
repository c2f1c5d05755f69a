// Package config loads the command line tool's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/viant/balltree/dataset"
	"github.com/viant/balltree/index/balltree"
	"github.com/viant/balltree/sqlindex"
)

// DefaultDB is the database file used when none is configured.
const DefaultDB = "balltree.sqlite"

// Config is the TOML configuration file layout:
//
//	db = "samples.sqlite"
//	table = "samples"
//	leaf_size = 30
//	kernel = "euclidean"
//	pivot = "farthest"
//	seed = 0
//	verbose = false
type Config struct {
	DB       string  `toml:"db"`
	Table    string  `toml:"table"`
	LeafSize int     `toml:"leaf_size"`
	Kernel   string  `toml:"kernel"`
	P        float64 `toml:"p"`
	Pivot    string  `toml:"pivot"`
	Seed     int64   `toml:"seed"`
	Verbose  bool    `toml:"verbose"`
}

// Default returns a configuration with every default value set.
func Default() *Config {
	c := &Config{}
	c.SetDefaultValues()
	return c
}

// Load decodes path over the defaults. Keys not known to Config are
// rejected.
func Load(path string) (*Config, error) {
	c := &Config{}
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: %w", err)
		}
		return nil, fmt.Errorf("config: %s: %v: %w", path, err, balltree.ErrInvalidConfiguration)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: %s: unknown keys %s: %w", path, strings.Join(keys, ", "), balltree.ErrInvalidConfiguration)
	}
	c.SetDefaultValues()
	return c, nil
}

// SetDefaultValues fills unset fields.
func (c *Config) SetDefaultValues() {
	if c.DB == "" {
		c.DB = DefaultDB
	}
	if c.Table == "" {
		c.Table = dataset.DefaultTable
	}
	if c.LeafSize == 0 {
		c.LeafSize = balltree.DefaultLeafSize
	}
	if c.Kernel == "" {
		c.Kernel = "euclidean"
	}
	if c.Pivot == "" {
		c.Pivot = "farthest"
	}
}

// Validate checks the configuration and returns the index options it
// selects.
func (c *Config) Validate() (sqlindex.Options, error) {
	if err := dataset.ValidateTableName(c.Table); err != nil {
		return sqlindex.Options{}, fmt.Errorf("config: %v: %w", err, balltree.ErrInvalidConfiguration)
	}
	opts, err := c.IndexOptions().Normalize()
	if err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	return opts, nil
}

// IndexOptions returns the ball tree build parameters.
func (c *Config) IndexOptions() sqlindex.Options {
	return sqlindex.Options{
		LeafSize: c.LeafSize,
		Kernel:   strings.ToLower(c.Kernel),
		P:        c.P,
		Pivot:    strings.ToLower(c.Pivot),
		Seed:     c.Seed,
	}
}
