// Package listing runs the extract-then-save sequence for one listing.
package listing

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cwygoda/grabber/internal/domain"
	"github.com/cwygoda/grabber/internal/extract"
	"github.com/cwygoda/grabber/internal/metrics"
	"github.com/cwygoda/grabber/internal/pipeline"
)

// Grabber saves the images of listings into folders below BaseDir.
type Grabber struct {
	extractor *extract.Extractor
	pipeline  *pipeline.Pipeline
	baseDir   string
	scale     float64
	log       *zap.Logger
}

// New creates a Grabber writing to baseDir/<folder> with the given scale.
func New(extractor *extract.Extractor, p *pipeline.Pipeline, baseDir string, scale float64, log *zap.Logger) *Grabber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Grabber{
		extractor: extractor,
		pipeline:  p,
		baseDir:   baseDir,
		scale:     scale,
		log:       log,
	}
}

// Dir returns the destination directory for folder.
func (g *Grabber) Dir(folder string) string {
	return filepath.Join(g.baseDir, folder)
}

// Extract returns the image URLs of a listing.
func (g *Grabber) Extract(ctx context.Context, listingURL string, sink domain.StatusSink) []string {
	return g.extractor.ImageURLs(ctx, listingURL, sink)
}

// Grab extracts a listing's images and saves them into folder. It returns
// domain.ErrNoImages when the listing yields no image URLs.
func (g *Grabber) Grab(ctx context.Context, listingURL, folder string, sink domain.StatusSink) (pipeline.Summary, error) {
	if sink == nil {
		sink = domain.Discard
	}
	start := time.Now()
	defer func() {
		metrics.ListingDuration.Observe(time.Since(start).Seconds())
	}()

	urls := g.Extract(ctx, listingURL, sink)
	if len(urls) == 0 {
		metrics.ListingsTotal.WithLabelValues("empty").Inc()
		return pipeline.Summary{}, domain.ErrNoImages
	}
	return g.Save(ctx, urls, folder, sink)
}

// Save runs the image pipeline over urls into folder and reports the
// final tally through sink.
func (g *Grabber) Save(ctx context.Context, urls []string, folder string, sink domain.StatusSink) (pipeline.Summary, error) {
	if sink == nil {
		sink = domain.Discard
	}
	dir := g.Dir(folder)
	sink.Status(fmt.Sprintf("downloading %d images...", len(urls)))

	summary, err := g.pipeline.ProcessAndSave(ctx, urls, dir, g.scale, sink)
	for _, o := range []pipeline.Outcome{pipeline.OutcomeSaved, pipeline.OutcomeFiltered, pipeline.OutcomeFailed} {
		if n := summary.Count(o); n > 0 {
			metrics.ImagesTotal.WithLabelValues(o.String()).Add(float64(n))
		}
	}
	if err != nil {
		metrics.ListingsTotal.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("save images to %s: %w", dir, err)
	}

	metrics.ListingsTotal.WithLabelValues("ok").Inc()
	g.log.Info("listing saved",
		zap.String("dir", dir),
		zap.Int("saved", summary.Saved),
		zap.Int("total", summary.Total),
	)
	sink.Status(fmt.Sprintf("done: saved %d of %d images in %s", summary.Saved, summary.Total, dir))
	return summary, nil
}
