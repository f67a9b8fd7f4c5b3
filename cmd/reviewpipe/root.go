package main

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/config"
	logpkg "github.com/kailas-cloud/reviewsearch/internal/logger"
	"github.com/kailas-cloud/reviewsearch/internal/metrics"
	"github.com/kailas-cloud/reviewsearch/internal/pipeline/sampling"
)

// Artifact file names under pipeline.output_dir.
const (
	productKeysFile = "product_keys.txt"
	productsFile    = "products.parquet"
	reviewsFile     = "reviews.parquet"
	vectorsFile     = "review_vectors.bin"
	idsFile         = "review_ids.bin"
)

// runtime is the state shared by all subcommands of one invocation.
type runtime struct {
	env      string
	logLevel string
	pushURL  string

	cfg     config.Config
	logger  *zap.Logger
	reg     *prometheus.Registry
	metrics *metrics.Pipeline

	// pipeline.* overrides
	outputDir string
	progress  int
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "reviewpipe",
		Short: "Offline pipeline for the review search index",
		Long: `reviewpipe builds everything the reviewsearch API serves from:

  sample         reservoir-sample products and build the review dataset
  embed          embed the review dataset into vector, ID and metadata files
  build-index    rebuild the HNSW review index from the vector file
  load-products  load sampled products into the lexical index and the catalog
  verify         cross-check all artifacts and run sample queries

Configuration comes from config/<env>.yaml; flags override pipeline settings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.finish(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&rt.env, "env", config.GetEnv(), "configuration environment (config/<env>.yaml)")
	pf.StringVar(&rt.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&rt.pushURL, "pushgateway", "", "push pipeline metrics to this Prometheus Pushgateway when done")
	pf.StringVar(&rt.outputDir, "out", "", "artifact directory (overrides pipeline.output_dir)")
	pf.IntVar(&rt.progress, "progress-every", 0, "log progress every N input lines (overrides pipeline.progress_every)")

	root.AddCommand(
		newSampleCmd(rt),
		newEmbedCmd(rt),
		newBuildIndexCmd(rt),
		newLoadProductsCmd(rt),
		newVerifyCmd(rt),
		newQueryCmd(rt),
		newVersionCmd(),
	)
	return root
}

func (rt *runtime) init(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(rt.env)
	if err != nil {
		return err
	}
	if rt.outputDir != "" {
		cfg.Pipeline.OutputDir = rt.outputDir
	}
	if rt.progress > 0 {
		cfg.Pipeline.ProgressEvery = rt.progress
	}
	rt.cfg = cfg

	level := cfg.Logging.Level
	if rt.logLevel != "" {
		level = rt.logLevel
	}
	logger, err := logpkg.NewLogger(rt.env, level, zap.String("service", "reviewpipe"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	rt.logger = logger.With(zap.String("command", cmd.Name()))

	rt.reg = prometheus.NewRegistry()
	rt.reg.MustRegister(collectors.NewGoCollector())
	rt.metrics = metrics.NewPipeline(rt.reg)
	return nil
}

func (rt *runtime) finish(cmd *cobra.Command) error {
	if rt.logger == nil {
		return nil
	}
	defer func() { _ = rt.logger.Sync() }()

	if rt.pushURL == "" {
		return nil
	}
	if err := push.New(rt.pushURL, "reviewpipe").
		Grouping("command", cmd.Name()).
		Gatherer(rt.reg).
		PushContext(cmd.Context()); err != nil {
		rt.logger.Warn("Failed to push metrics", zap.String("url", rt.pushURL), zap.Error(err))
	}
	return nil
}

func (rt *runtime) path(name string) string {
	return filepath.Join(rt.cfg.Pipeline.OutputDir, name)
}

func (rt *runtime) samplingOptions() sampling.Options {
	return sampling.Options{
		Logger:        rt.logger,
		Metrics:       rt.metrics,
		ProgressEvery: rt.cfg.Pipeline.ProgressEvery,
	}
}
