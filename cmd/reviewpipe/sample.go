package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/pipeline/dataset"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/rawrecord"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/sampling"
)

func newSampleCmd(rt *runtime) *cobra.Command {
	var (
		productsPath string
		reviewsPath  string
		nProducts    int
		nReviews     int
		perProduct   int
		seed         uint64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample products and build the review dataset",
		Long: `Reservoir-samples product keys from the product catalog stream, writes the
sampled products and their key list, then selects reviews of sampled products
in two passes (per-product cap first, uncapped fill second).

Inputs are JSON lines, optionally gzip-compressed (.gz).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := &rt.cfg.Pipeline
			if cmd.Flags().Changed("products") {
				p.ProductsPath = productsPath
			}
			if cmd.Flags().Changed("reviews") {
				p.ReviewsPath = reviewsPath
			}
			if cmd.Flags().Changed("sample-products") {
				p.SampleProducts = nProducts
			}
			if cmd.Flags().Changed("sample-reviews") {
				p.SampleReviews = nReviews
			}
			if cmd.Flags().Changed("per-product-cap") {
				p.PerProductCap = perProduct
			}
			if cmd.Flags().Changed("seed") {
				p.Seed = seed
			}
			return rt.runSample(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&productsPath, "products", "", "product catalog JSON lines (overrides pipeline.products_path)")
	f.StringVar(&reviewsPath, "reviews", "", "review JSON lines (overrides pipeline.reviews_path)")
	f.IntVar(&nProducts, "sample-products", 0, "number of products to sample")
	f.IntVar(&nReviews, "sample-reviews", 0, "target number of reviews")
	f.IntVar(&perProduct, "per-product-cap", 0, "first-pass review cap per product")
	f.Uint64Var(&seed, "seed", 0, "reservoir sampling seed")
	return cmd
}

func (rt *runtime) runSample(cmd *cobra.Command) (err error) {
	ctx := cmd.Context()
	p := rt.cfg.Pipeline
	opts := rt.samplingOptions()

	rt.logger.Info("Sampling products",
		zap.String("source", p.ProductsPath),
		zap.Int("k", p.SampleProducts),
		zap.Uint64("seed", p.Seed),
	)
	products := rawrecord.FileSource(p.ProductsPath)
	sample, err := sampling.SampleProductKeys(ctx, products, p.SampleProducts, p.Seed, opts)
	if err != nil {
		return err
	}
	if err := dataset.WriteKeys(rt.path(productKeysFile), sample.Keys); err != nil {
		return err
	}
	keys := sample.KeySet()

	pw, err := dataset.Create[dataset.ProductRow](rt.path(productsFile))
	if err != nil {
		return err
	}
	written, err := sampling.WriteSampledProducts(ctx, products, keys,
		func(row dataset.ProductRow) error { return pw.Write(row) }, opts)
	if err = errors.Join(err, pw.Close()); err != nil {
		return err
	}
	if written != len(keys) {
		rt.logger.Warn("Some sampled products were not found on the second scan",
			zap.Int("sampled", len(keys)), zap.Int("written", written))
	}

	rt.logger.Info("Building review dataset",
		zap.String("source", p.ReviewsPath),
		zap.Int("target", p.SampleReviews),
		zap.Int("per_product_cap", p.PerProductCap),
	)
	rw, err := dataset.Create[dataset.ReviewRow](rt.path(reviewsFile))
	if err != nil {
		return err
	}
	stats, err := sampling.BuildReviewDataset(ctx, rawrecord.FileSource(p.ReviewsPath), keys,
		sampling.ReviewConfig{Target: p.SampleReviews, PerProductCap: p.PerProductCap},
		func(row dataset.ReviewRow) error { return rw.Write(row) }, opts)
	if err = errors.Join(err, rw.Close()); err != nil {
		return err
	}

	rt.logger.Info("Sample complete",
		zap.Int("products_seen", sample.Seen),
		zap.Int("products_sampled", written),
		zap.Int("reviews_first_pass", stats.FirstPass),
		zap.Int("reviews_second_pass", stats.SecondPass),
		zap.Int("reviews_duplicates", stats.Duplicates),
		zap.Int("parse_errors", sample.ParseErrors+stats.ParseErrors),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "sampled %d products, %d reviews into %s\n",
		written, stats.Total(), rt.cfg.Pipeline.OutputDir)
	return nil
}
