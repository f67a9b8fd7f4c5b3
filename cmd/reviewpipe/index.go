package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/reviewsearch/internal/app"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/indexbuild"
)

func newBuildIndexCmd(rt *runtime) *cobra.Command {
	var (
		m              int
		efConstruction int
		efRuntime      int
	)

	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Rebuild the HNSW review index",
		Long: `Drops the review vector index with its documents, recreates it with the
configured connectivity (M) and construction beam width, loads every vector
under its ID and writes the index sidecar. Rebuilds are always full rebuilds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := &rt.cfg.Vector
			if cmd.Flags().Changed("m") {
				v.Connectivity = m
			}
			if cmd.Flags().Changed("ef-construction") {
				v.ConstructionBeamWidth = efConstruction
			}
			if cmd.Flags().Changed("ef-runtime") {
				v.DefaultQueryBeamWidth = efRuntime
			}
			return rt.runBuildIndex(cmd)
		},
	}

	f := cmd.Flags()
	f.IntVar(&m, "m", 0, "HNSW connectivity (overrides vector.hnsw_m)")
	f.IntVar(&efConstruction, "ef-construction", 0, "HNSW construction beam width")
	f.IntVar(&efRuntime, "ef-runtime", 0, "default query beam width recorded in the sidecar")
	return cmd
}

func (rt *runtime) runBuildIndex(cmd *cobra.Command) error {
	ctx := cmd.Context()

	store, err := app.ConnectStore(ctx, rt.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	index := app.VectorIndex(store, app.IndexParams(rt.cfg), rt.cfg)
	b := indexbuild.New(index, indexbuild.Options{BatchSize: rt.cfg.Vector.LoadBatchSize}, rt.logger, rt.metrics)

	sc, err := b.Build(ctx, indexbuild.Paths{
		Vectors: rt.path(vectorsFile),
		IDs:     rt.path(idsFile),
		Sidecar: rt.cfg.Vector.SidecarPath,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "index %s: %d vectors, dim %d, M %d, ef_construction %d\n",
		sc.IndexName, sc.Count, sc.Dimension, sc.Connectivity, sc.ConstructionBeamWidth)
	return nil
}
