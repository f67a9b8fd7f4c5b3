package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/app"
	"github.com/kailas-cloud/reviewsearch/internal/domain"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/verify"
)

func newVerifyCmd(rt *runtime) *cobra.Command {
	var (
		queries   []string
		noQueries bool
		minSim    float64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Cross-check pipeline artifacts",
		Long: `Checks that the vector file, the ID file, the metadata store, the sidecar and
the live index agree on the row count, that vector IDs are exactly 0..N-1 and
that the sidecar dimension matches the vector file. Then runs sample queries
and warns when the best similarity is low. Exits non-zero on any mismatch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("min-similarity") {
				rt.cfg.Pipeline.VerifyMinSimilarity = minSim
			}
			if len(queries) == 0 {
				queries = verify.DefaultSampleQueries
			}
			if noQueries {
				queries = nil
			}
			return rt.runVerify(cmd, queries)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&queries, "query", nil, "sample query (repeatable; defaults to a built-in set)")
	f.BoolVar(&noQueries, "no-queries", false, "skip sample queries (no embedding provider needed)")
	f.Float64Var(&minSim, "min-similarity", 0, "warn when a sample query's best similarity is below this")
	return cmd
}

func (rt *runtime) runVerify(cmd *cobra.Command, queries []string) error {
	ctx := cmd.Context()

	store, err := app.ConnectStore(ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	meta, err := app.OpenMetadata(rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer func() { _ = meta.Close() }()

	var embed domain.Embedder
	if len(queries) > 0 {
		embed = app.OfflineEmbedder(rt.cfg, rt.logger)
	}

	v := verify.New(meta, app.VectorIndex(store, app.IndexParams(rt.cfg), rt.cfg), embed,
		rt.cfg.Pipeline.VerifyMinSimilarity, rt.logger)

	rep, err := v.Run(ctx, verify.Inputs{
		Vectors: rt.path(vectorsFile),
		IDs:     rt.path(idsFile),
		Sidecar: rt.cfg.Vector.SidecarPath,
	}, queries)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "OK: %d vectors, dim %d\n", rep.Rows, rep.Dimension)
	low := 0
	for _, s := range rep.Samples {
		mark := ""
		if s.Low {
			mark = "  (low)"
			low++
		}
		fmt.Fprintf(out, "  %-30q best %.3f%s\n", s.Query, s.BestSimilarity, mark)
	}
	if low > 0 {
		rt.logger.Warn("Sample queries with low similarity", zap.Int("count", low))
	}
	return nil
}
