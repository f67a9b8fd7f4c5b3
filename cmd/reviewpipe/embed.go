package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/app"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/embedgen"
)

func newEmbedCmd(rt *runtime) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed the review dataset",
		Long: `Embeds every review of the sampled dataset and writes the vector file, the
ID file and the metadata store in identical row order. Existing metadata is
replaced. Failed provider calls are retried with exponential backoff; running
out of retries aborts the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("batch-size") {
				rt.cfg.Embedding.BatchSize = batchSize
			}
			return rt.runEmbed(cmd)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "reviews per embedding call (overrides embedding.batch_size)")
	return cmd
}

func (rt *runtime) runEmbed(cmd *cobra.Command) error {
	meta, err := app.OpenMetadata(rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer func() { _ = meta.Close() }()

	gen := embedgen.New(
		app.OfflineEmbedder(rt.cfg, rt.logger),
		meta,
		rt.cfg.Embedding.Dimensions,
		rt.cfg.Embedding.BatchSize,
		rt.logger,
		rt.metrics,
	)

	res, err := gen.Run(cmd.Context(), embedgen.Paths{
		Reviews: rt.path(reviewsFile),
		Vectors: rt.path(vectorsFile),
		IDs:     rt.path(idsFile),
	})
	if err != nil {
		return err
	}

	rt.logger.Info("Embed complete",
		zap.Int64("rows", res.Rows),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Duration("duration", res.Duration),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "embedded %d reviews (dim %d)\n", res.Rows, res.Dimension)
	return nil
}
