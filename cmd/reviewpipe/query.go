package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/reviewsearch/internal/app"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/textnorm"
)

func newQueryCmd(rt *runtime) *cobra.Command {
	var (
		k         int
		beamWidth int
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Semantic-only search over reviews",
		Long: `Embeds the query, searches the review vector index and prints the nearest
reviews with their product keys. No lexical stage, no product enrichment.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runQuery(cmd, strings.Join(args, " "), k, beamWidth)
		},
	}

	cmd.Flags().IntVar(&k, "k", 10, "number of reviews")
	cmd.Flags().IntVar(&beamWidth, "beam-width", 0, "query beam width (default from vector.hnsw_ef_runtime)")
	return cmd
}

func (rt *runtime) runQuery(cmd *cobra.Command, query string, k, beamWidth int) error {
	ctx := cmd.Context()
	if beamWidth <= 0 {
		beamWidth = rt.cfg.Vector.DefaultQueryBeamWidth
	}

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

	res, err := app.OfflineEmbedder(rt.cfg, rt.logger).Embed(ctx, query)
	if err != nil {
		return err
	}
	hits, err := app.VectorIndex(store, app.IndexParams(rt.cfg), rt.cfg).SearchReviews(ctx, res.Embedding, k, beamWidth)
	if err != nil {
		return err
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.VectorID
	}
	metas, err := meta.ReviewsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, h := range hits {
		m, ok := metas[h.VectorID]
		if !ok {
			fmt.Fprintf(out, "%2d. %.4f  id=%d  (no metadata)\n", i+1, h.Similarity, h.VectorID)
			continue
		}
		fmt.Fprintf(out, "%2d. %.4f  id=%d  %s  %s\n",
			i+1, h.Similarity, h.VectorID, m.ProductKey, textnorm.Truncate(m.Text, 160))
	}
	return nil
}
