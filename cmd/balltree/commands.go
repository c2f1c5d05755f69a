package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/viant/balltree/dataset"
	"github.com/viant/balltree/index"
	"github.com/viant/balltree/index/balltree"
	"github.com/viant/balltree/index/bruteforce"
	"github.com/viant/balltree/sqlindex"
	"go.uber.org/zap"
)

func newLoadCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <file.ndjson>",
		Short: "Load labeled samples from an NDJSON file into the sample table",
		Long: `Each line of the file is a JSON array holding the features of one sample
followed by its label, for example [5.1, 3.5, 1.4, 0.2, "setosa"].`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			records, err := dataset.ReadNDJSON(f)
			if err != nil {
				return err
			}
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			if err := sqlindex.Prepare(ctx, db, root.cfg.Table); err != nil {
				return err
			}
			store, err := dataset.NewSQLiteStore(db, root.cfg.Table)
			if err != nil {
				return err
			}
			ids, err := store.AddRecords(ctx, records)
			if err != nil {
				return err
			}
			root.logger.Info("loaded samples", zap.String("file", args[0]), zap.String("table", root.cfg.Table), zap.Int("rows", len(ids)))
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d samples into %s\n", len(ids), root.cfg.Table)
			return nil
		},
	}
}

func newBuildCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Grow a ball tree over the sample table and persist it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := root.open()
			if err != nil {
				return err
			}
			defer db.Close()
			idx, err := sqlindex.Rebuild(cmd.Context(), db, root.cfg.Table, root.index, root.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "samples=%d dimensions=%d height=%d balance=%d leaves=%d\n",
				idx.Len(), idx.Dimensions(), idx.Height(), idx.Balance(), idx.Leaves())
			return nil
		},
	}
}

func newNearestCommand(root *rootOptions) *cobra.Command {
	s := &search{}
	cmd := &cobra.Command{
		Use:   "nearest <features>",
		Short: "Print the k samples nearest to a comma separated feature vector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.k < 1 {
				return fmt.Errorf("balltree: --k must be greater than 0, %d given: %w", s.k, balltree.ErrInvalidConfiguration)
			}
			return s.run(cmd, root, args[0])
		},
	}
	cmd.Flags().IntVarP(&s.k, "k", "k", 1, "number of neighbors")
	cmd.Flags().BoolVar(&s.exact, "exact", false, "answer with a linear scan instead of the ball tree")
	return cmd
}

func newRangeCommand(root *rootOptions) *cobra.Command {
	s := &search{within: true}
	cmd := &cobra.Command{
		Use:   "range <features>",
		Short: "Print every sample within --radius of a comma separated feature vector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd, root, args[0])
		},
	}
	cmd.Flags().Float64VarP(&s.radius, "radius", "r", 0, "search radius")
	cmd.Flags().BoolVar(&s.exact, "exact", false, "answer with a linear scan instead of the ball tree")
	_ = cmd.MarkFlagRequired("radius")
	return cmd
}

// search is a nearest (k) or range (radius) query.
type search struct {
	within bool
	k      int
	radius float64
	exact  bool
}

func (s *search) run(cmd *cobra.Command, root *rootOptions, features string) error {
	query, err := parseVector(features)
	if err != nil {
		return err
	}
	db, err := root.open()
	if err != nil {
		return err
	}
	defer db.Close()
	var found []balltree.Match
	if s.exact {
		found, err = s.scan(cmd.Context(), db, root, query)
	} else {
		var idx *balltree.Index
		if idx, err = root.loadIndex(cmd.Context(), db); err == nil {
			found, err = s.tree(idx, query)
		}
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, m := range found {
		fmt.Fprintf(out, "%s\t%s\t%g\n", m.ID, m.Label, m.Distance)
	}
	return nil
}

func (s *search) tree(idx *balltree.Index, query []float32) ([]balltree.Match, error) {
	if s.within {
		return idx.Within(query, s.radius)
	}
	return idx.Nearest(query, s.k)
}

// scan answers the query with the brute force index over the sample table.
func (s *search) scan(ctx context.Context, db *sql.DB, root *rootOptions, query []float32) ([]balltree.Match, error) {
	records, err := dataset.Load(ctx, db, root.cfg.Table)
	if err != nil {
		return nil, err
	}
	brute, err := bruteforce.New(root.index.Kernel, root.index.P)
	if err != nil {
		return nil, err
	}
	ids, labels, vectors := dataset.Columns(records)
	if err := brute.Build(ids, vectors); err != nil {
		return nil, err
	}
	var idx index.Index = brute
	var distances []float64
	if s.within {
		ids, distances, err = idx.Range(query, s.radius)
	} else {
		ids, distances, err = idx.Query(query, s.k)
	}
	if err != nil {
		return nil, err
	}
	labelOf := make(map[string]string, len(records))
	for i, r := range records {
		labelOf[r.ID] = labels[i]
	}
	out := make([]balltree.Match, len(ids))
	for i, id := range ids {
		out[i] = balltree.Match{ID: id, Label: labelOf[id], Distance: distances[i]}
	}
	return out, nil
}
