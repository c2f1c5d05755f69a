package sqlindex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/balltree/index/balltree"
	"go.uber.org/zap"
)

// Options are the ball tree build parameters of a virtual table. They are
// given as key=value module arguments, for example
// USING balltree(samples, leaf_size=8, kernel=manhattan, pivot=random, seed=7).
type Options struct {
	LeafSize int
	Kernel   string
	// P is the minkowski power or the gower range; zero selects the default.
	P     float64
	Pivot string
	Seed  int64
}

// DefaultOptions returns the options used for keys that are not given.
func DefaultOptions() Options {
	return Options{LeafSize: balltree.DefaultLeafSize, Kernel: "euclidean", Pivot: "farthest"}
}

// ParseOptions parses key=value arguments over DefaultOptions. Recognized
// keys are leaf_size, kernel, p, pivot and seed.
func ParseOptions(args []string) (Options, error) {
	opts := DefaultOptions()
	for _, raw := range args {
		a := strings.TrimSpace(raw)
		if a == "" {
			continue
		}
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			return opts, fmt.Errorf("sqlindex: option %q is not key=value: %w", a, balltree.ErrInvalidConfiguration)
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.Trim(strings.TrimSpace(parts[1]), `'"`)
		var err error
		switch key {
		case "leaf_size":
			opts.LeafSize, err = strconv.Atoi(val)
		case "kernel":
			opts.Kernel = strings.ToLower(val)
		case "p":
			opts.P, err = strconv.ParseFloat(val, 64)
		case "pivot":
			opts.Pivot = strings.ToLower(val)
		case "seed":
			opts.Seed, err = strconv.ParseInt(val, 10, 64)
		default:
			return opts, fmt.Errorf("sqlindex: unknown option %q: %w", key, balltree.ErrInvalidConfiguration)
		}
		if err != nil {
			return opts, fmt.Errorf("sqlindex: option %s: %v: %w", key, err, balltree.ErrInvalidConfiguration)
		}
	}
	return opts.Normalize()
}

// Normalize validates the options and rewrites kernel aliases to their
// canonical names so equal configurations share one key.
func (o Options) Normalize() (Options, error) {
	idx, err := o.NewIndex(nil)
	if err != nil {
		return o, fmt.Errorf("sqlindex: %w", err)
	}
	o.Kernel, o.P = idx.Kernel()
	if o.Pivot == "" {
		o.Pivot = "farthest"
	}
	return o, nil
}

// Key identifies the configuration in the cache and in index_storage.
func (o Options) Key() string {
	return fmt.Sprintf("kernel=%s p=%g leaf_size=%d pivot=%s seed=%d", o.Kernel, o.P, o.LeafSize, o.Pivot, o.Seed)
}

// NewIndex returns an empty ball tree index configured with o.
func (o Options) NewIndex(logger *zap.Logger) (*balltree.Index, error) {
	return balltree.New(
		balltree.WithLeafSize(o.LeafSize),
		balltree.WithKernel(o.Kernel, o.P),
		balltree.WithPivot(o.Pivot),
		balltree.WithSeed(o.Seed),
		balltree.WithLogger(logger),
	)
}

// parseKey reverses Key.
func parseKey(key string) (Options, error) {
	return ParseOptions(strings.Fields(key))
}
