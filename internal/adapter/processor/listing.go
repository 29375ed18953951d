package processor

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/cwygoda/grabber/internal/config"
	"github.com/cwygoda/grabber/internal/domain"
	"github.com/cwygoda/grabber/internal/extract"
	"github.com/cwygoda/grabber/internal/listing"
	"github.com/cwygoda/grabber/internal/pipeline"
)

// ListingProcessor grabs the images of marketplace listings whose URL
// matches its pattern.
type ListingProcessor struct {
	name      string
	pattern   *regexp.Regexp
	targetDir string
	grabber   *listing.Grabber
	log       *zap.Logger
}

// NewListingProcessor creates a processor from config. An empty
// target_dir falls back to defaultDir and a zero scale to defaultScale.
func NewListingProcessor(
	pc config.ProcessorConfig,
	extractor *extract.Extractor,
	p *pipeline.Pipeline,
	defaultDir string,
	defaultScale float64,
	log *zap.Logger,
) (*ListingProcessor, error) {
	re, err := regexp.Compile(pc.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pc.Pattern, err)
	}

	targetDir := defaultDir
	if pc.TargetDir != "" {
		targetDir = config.ExpandPath(pc.TargetDir)
	}
	scale := defaultScale
	if pc.Scale > 0 {
		scale = pc.Scale
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("processor", pc.Name))

	return &ListingProcessor{
		name:      pc.Name,
		pattern:   re,
		targetDir: targetDir,
		grabber:   listing.New(extractor, p, targetDir, scale, log),
		log:       log,
	}, nil
}

func (p *ListingProcessor) Name() string {
	return p.name
}

func (p *ListingProcessor) TargetDir() string {
	return p.targetDir
}

func (p *ListingProcessor) Match(url string) bool {
	return p.pattern.MatchString(url)
}

// Process grabs the job's listing into TargetDir/job.Folder. Status
// messages go to the debug log.
func (p *ListingProcessor) Process(ctx context.Context, job *domain.Job) (domain.Outcome, error) {
	log := p.log.With(zap.Int64("job_id", job.ID))
	sink := domain.StatusFunc(func(msg string) {
		log.Debug("status", zap.String("msg", msg))
	})

	summary, err := p.grabber.Grab(ctx, job.URL, job.Folder, sink)
	return domain.Outcome{Saved: summary.Saved, Total: summary.Total}, err
}
