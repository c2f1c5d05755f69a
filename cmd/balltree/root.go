package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/viant/balltree/engine"
	"github.com/viant/balltree/index/balltree"
	"github.com/viant/balltree/internal/config"
	"github.com/viant/balltree/sqlindex"
	"go.uber.org/zap"
)

type rootOptions struct {
	configFile string
	db         string
	table      string
	leafSize   int
	kernel     string
	verbose    bool

	cfg    *config.Config
	index  sqlindex.Options
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "balltree",
		Short:         "Ball tree nearest neighbor search over SQLite sample tables",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.complete(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "TOML configuration file")
	flags.StringVar(&opts.db, "db", config.DefaultDB, "SQLite database file")
	flags.StringVar(&opts.table, "table", "samples", "sample table name")
	flags.IntVar(&opts.leafSize, "leaf-size", 0, "maximum samples per leaf (default from config)")
	flags.StringVar(&opts.kernel, "kernel", "", "distance kernel: euclidean, manhattan, chebyshev, minkowski or gower")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "development logging at debug level")

	cmd.AddCommand(
		newLoadCommand(opts),
		newBuildCommand(opts),
		newNearestCommand(opts),
		newRangeCommand(opts),
	)
	return cmd
}

// complete loads the configuration file, overlays the flags the user set
// and builds the logger.
func (o *rootOptions) complete(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configFile != "" {
		loaded, err := config.Load(o.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB = o.db
	}
	if flags.Changed("table") {
		cfg.Table = o.table
	}
	if flags.Changed("leaf-size") {
		cfg.LeafSize = o.leafSize
	}
	if flags.Changed("kernel") {
		cfg.Kernel = o.kernel
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	index, err := cfg.Validate()
	if err != nil {
		return err
	}
	o.cfg, o.index = cfg, index

	var logger *zap.Logger
	if cfg.Verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("balltree: logger: %w", err)
	}
	o.logger = logger
	return nil
}

// open opens the configured database with the balltree SQL module
// registered, so sample writes can run the invalidation triggers.
func (o *rootOptions) open() (*sql.DB, error) {
	if err := engine.RegisterVectorFunctions(nil); err != nil {
		return nil, err
	}
	db, err := engine.Open(o.cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := sqlindex.Register(db, sqlindex.WithLogger(o.logger)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// loadIndex returns the persisted tree for the configured table, growing
// and persisting one when none is stored.
func (o *rootOptions) loadIndex(ctx context.Context, db *sql.DB) (*balltree.Index, error) {
	if err := sqlindex.Prepare(ctx, db, o.cfg.Table); err != nil {
		return nil, err
	}
	idx, ok, err := sqlindex.LoadPersisted(ctx, db, o.cfg.Table, o.index, o.logger)
	if err != nil {
		return nil, err
	}
	if !ok {
		o.logger.Debug("no persisted tree, building", zap.String("table", o.cfg.Table))
		if idx, err = sqlindex.Rebuild(ctx, db, o.cfg.Table, o.index, o.logger); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// parseVector parses a comma separated feature list.
func parseVector(csv string) ([]float32, error) {
	parts := strings.Split(csv, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("balltree: invalid feature %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("balltree: query vector is empty")
	}
	return out, nil
}
