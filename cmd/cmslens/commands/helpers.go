package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmslens/cmslens/pkg/analysis"
	"github.com/cmslens/cmslens/pkg/appctx"
	"github.com/cmslens/cmslens/pkg/capture"
	"github.com/cmslens/cmslens/pkg/config"
	"github.com/cmslens/cmslens/pkg/signals"
	"github.com/cmslens/cmslens/pkg/storage"
)

// loadPageSize bounds a single store read while assembling a corpus.
const loadPageSize = 1000

// currentConfig returns the loaded configuration from the command context.
func currentConfig(cmd *cobra.Command) (config.Config, error) {
	manager, ok := appctx.Config(cmd.Context())
	if !ok {
		return config.Config{}, errors.New("configuration not initialized")
	}
	return manager.Get(), nil
}

// openStore creates the capture store from the context-scoped storage
// configuration.
func openStore(cmd *cobra.Command) (storage.Store, error) {
	cfg, ok := storage.ConfigFromContext(cmd.Context())
	if !ok {
		return nil, errors.New("no capture store configured; enable the workspace or set storage.root")
	}
	return storage.NewStore(cmd.Context(), cfg)
}

// loadCorpus pages through the store and returns the full corpus snapshot
// matching the query.
func loadCorpus(ctx context.Context, store storage.Store, q storage.Query) ([]capture.DetectionDataPoint, error) {
	var dataPoints []capture.DetectionDataPoint

	q.Limit = loadPageSize
	for {
		page, err := store.Load(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
		dataPoints = append(dataPoints, page.DataPoints...)
		if page.NextCursor == "" {
			break
		}
		q.Cursor = page.NextCursor
	}

	return dataPoints, nil
}

// filterByCMS keeps the captures whose effective CMS label matches the
// filter. An empty filter keeps everything.
func filterByCMS(dataPoints []capture.DetectionDataPoint, cmsFilter string, minConfidence float64) []capture.DetectionDataPoint {
	if cmsFilter == "" {
		return dataPoints
	}
	if minConfidence == 0 {
		minConfidence = capture.DefaultMinConfidence
	}

	want := capture.NormalizeCMS(cmsFilter)
	kept := dataPoints[:0]
	for _, dp := range dataPoints {
		if dp.EffectiveCMS(minConfidence) == want {
			kept = append(kept, dp)
		}
	}
	return kept
}

// analysisOptions maps the loaded configuration onto pipeline options,
// keeping component defaults for anything the config leaves at zero.
func analysisOptions(cfg config.Config) analysis.Options {
	opts := analysis.DefaultOptions()

	a := cfg.Analysis
	if a.MinDetectionConfidence > 0 {
		opts.Bias.MinDetectionConfidence = a.MinDetectionConfidence
		opts.Discovery.MinDetectionConfidence = a.MinDetectionConfidence
		opts.Recommend.MinDetectionConfidence = a.MinDetectionConfidence
	}
	if a.ConcentrationWarnShare > 0 {
		opts.Bias.ConcentrationWarnShare = a.ConcentrationWarnShare
	}
	if a.HighSpecificity > 0 {
		opts.Bias.Bands.High = a.HighSpecificity
		opts.Recommend.SpecificityThreshold = a.HighSpecificity
	}
	if a.MediumSpecificity > 0 {
		opts.Bias.Bands.Medium = a.MediumSpecificity
	}
	if a.FilterFrequency > 0 {
		opts.Recommend.FilterFrequency = a.FilterFrequency
	}
	if a.FilterDiversity > 0 {
		opts.Recommend.FilterDiversity = a.FilterDiversity
	}
	if a.KeepCorrelation > 0 {
		opts.Recommend.KeepCorrelation = a.KeepCorrelation
	}
	if a.MaxKeep > 0 {
		opts.Recommend.MaxKeep = a.MaxKeep
	}
	if a.MaxPatterns > 0 {
		opts.Discovery.MaxPatterns = a.MaxPatterns
	}

	return opts
}

// resolveAllowlists loads allowlist overrides when configured, otherwise
// returns the built-in lists.
func resolveAllowlists(cfg config.Config) (signals.Allowlists, error) {
	if cfg.Allowlist.File == "" {
		return signals.Defaults(), nil
	}
	lists, err := signals.LoadAllowlists(cfg.Allowlist.File)
	if err != nil {
		return signals.Allowlists{}, fmt.Errorf("load allowlists: %w", err)
	}
	return lists, nil
}
