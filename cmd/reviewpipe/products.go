package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/reviewsearch/internal/app"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/productload"
)

func newLoadProductsCmd(rt *runtime) *cobra.Command {
	var (
		workers   int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "load-products",
		Short: "Load sampled products into the lexical index and the catalog",
		Long: `Creates the lexical product index and the products table when absent, then
upserts the sampled product dataset into both from a bounded worker pool.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("workers") {
				rt.cfg.Pipeline.LoadWorkers = workers
			}
			if cmd.Flags().Changed("batch-size") {
				rt.cfg.Pipeline.LoadBatchSize = batchSize
			}
			return rt.runLoadProducts(cmd)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent upsert workers (overrides pipeline.load_workers)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "products per upsert (overrides pipeline.load_batch_size)")
	return cmd
}

func (rt *runtime) runLoadProducts(cmd *cobra.Command) error {
	ctx := cmd.Context()

	store, err := app.ConnectStore(ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog, err := app.OpenCatalog(ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	l := productload.New(app.Lexical(store, rt.cfg), catalog, productload.Options{
		Workers:   rt.cfg.Pipeline.LoadWorkers,
		BatchSize: rt.cfg.Pipeline.LoadBatchSize,
	}, rt.logger, rt.metrics)

	res, err := l.Run(ctx, rt.path(productsFile))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d products in %s\n", res.Loaded, res.Duration.Round(time.Millisecond))
	return nil
}
