package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/balltree/index/balltree"
	"github.com/viant/balltree/sqlindex"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "balltree.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
db = "data.sqlite"
table = "iris"
leaf_size = 8
kernel = "Minkowski"
p = 4.0
pivot = "random"
seed = 42
verbose = true
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{DB: "data.sqlite", Table: "iris", LeafSize: 8, Kernel: "Minkowski", P: 4, Pivot: "random", Seed: 42, Verbose: true}, c)

	opts, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, sqlindex.Options{LeafSize: 8, Kernel: "minkowski", P: 4, Pivot: "random", Seed: 42}, opts)
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, `kernel = "l1"`))
	require.NoError(t, err)
	assert.Equal(t, DefaultDB, c.DB)
	assert.Equal(t, "samples", c.Table)
	assert.Equal(t, balltree.DefaultLeafSize, c.LeafSize)
	assert.Equal(t, "farthest", c.Pivot)

	opts, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, "manhattan", opts.Kernel)
	assert.Equal(t, Default().IndexOptions().LeafSize, opts.LeafSize)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Load(writeConfig(t, `leaf_size = "eight"`))
	assert.ErrorIs(t, err, balltree.ErrInvalidConfiguration)

	_, err = Load(writeConfig(t, `depth = 3`))
	assert.ErrorIs(t, err, balltree.ErrInvalidConfiguration)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"leaf size", func(c *Config) { c.LeafSize = -1 }},
		{"kernel", func(c *Config) { c.Kernel = "cosine" }},
		{"minkowski power", func(c *Config) { c.Kernel, c.P = "minkowski", 0.5 }},
		{"pivot", func(c *Config) { c.Pivot = "median" }},
		{"table", func(c *Config) { c.Table = "samples; DROP TABLE x" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			_, err := c.Validate()
			assert.ErrorIs(t, err, balltree.ErrInvalidConfiguration)
		})
	}
}
