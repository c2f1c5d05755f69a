package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplesNDJSON = `[0, 0, "a"]
[0, 1, "b"]
[5, 5, "c"]
[5, 6, "c"]
`

func execute(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// rows splits tab separated query output into label and distance pairs.
func rows(t *testing.T, out string) [][2]string {
	t.Helper()
	var got [][2]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		require.Len(t, fields, 3, line)
		assert.NotEmpty(t, fields[0])
		got = append(got, [2]string{fields[1], fields[2]})
	}
	return got
}

func seed(t *testing.T) (dir, db string) {
	t.Helper()
	dir = t.TempDir()
	input := filepath.Join(dir, "samples.ndjson")
	require.NoError(t, os.WriteFile(input, []byte(samplesNDJSON), 0o644))
	db = filepath.Join(dir, "cli.sqlite")
	out, err := execute("load", input, "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "loaded 4 samples into samples")
	return dir, db
}

func TestCLI_BuildAndQuery(t *testing.T) {
	_, db := seed(t)

	out, err := execute("build", "--db", db, "--leaf-size", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "samples=4 dimensions=2 height=3 balance=0 leaves=4")

	out, err = execute("nearest", "--db", db, "--leaf-size", "1", "--k", "2", "0,0.25")
	require.NoError(t, err, out)
	assert.Equal(t, [][2]string{{"a", "0.25"}, {"b", "0.75"}}, rows(t, out))

	out, err = execute("range", "--db", db, "--radius", "0.5", "5, 5.5")
	require.NoError(t, err, out)
	assert.Equal(t, [][2]string{{"c", "0.5"}, {"c", "0.5"}}, rows(t, out))

	for _, args := range [][]string{
		{"nearest", "--db", db, "--k", "3", "4.5,5"},
		{"range", "--db", db, "--radius", "1.5", "0,0.5"},
		{"nearest", "--db", db, "--kernel", "chebyshev", "--k", "4", "2,3"},
	} {
		tree, err := execute(args...)
		require.NoError(t, err, tree)
		exact, err := execute(append(args, "--exact")...)
		require.NoError(t, err, exact)
		assert.Equal(t, tree, exact, strings.Join(args, " "))
	}

	out, err = execute("nearest", "--db", db, "--kernel", "manhattan", "1,2")
	require.NoError(t, err, out)
	assert.Equal(t, [][2]string{{"b", "2"}}, rows(t, out))
}

func TestCLI_Config(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "samples.ndjson")
	require.NoError(t, os.WriteFile(input, []byte(samplesNDJSON), 0o644))
	cfg := filepath.Join(dir, "balltree.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
db = "`+filepath.ToSlash(filepath.Join(dir, "cfg.sqlite"))+`"
table = "iris"
leaf_size = 2
kernel = "chebyshev"
`), 0o644))

	out, err := execute("load", input, "--config", cfg)
	require.NoError(t, err, out)
	assert.Contains(t, out, "into iris")

	out, err = execute("nearest", "--config", cfg, "--k", "1", "4,8")
	require.NoError(t, err, out)
	assert.Equal(t, [][2]string{{"c", "2"}}, rows(t, out))
}

func TestCLI_Errors(t *testing.T) {
	_, db := seed(t)
	cases := [][]string{
		{"nearest", "--db", db, "--k", "0", "0,0"},
		{"nearest", "--db", db, "0,x"},
		{"nearest", "--db", db, "0,0,0"},
		{"range", "--db", db, "0,0"},
		{"range", "--db", db, "--radius", "-1", "0,0"},
		{"build", "--db", db, "--kernel", "cosine"},
		{"build", "--db", db, "--leaf-size", "-3"},
		{"load", filepath.Join(t.TempDir(), "missing.ndjson"), "--db", db},
		{"build", "--config", filepath.Join(t.TempDir(), "missing.toml")},
	}
	for _, args := range cases {
		_, err := execute(args...)
		assert.Error(t, err, strings.Join(args, " "))
	}
}

func TestParseVector(t *testing.T) {
	v, err := parseVector(" 1, 2.5 ,3,")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, 3}, v)

	_, err = parseVector(" , ")
	assert.Error(t, err)
	_, err = parseVector("1,two")
	assert.Error(t, err)
}
