// Package pipeline downloads, filters, upscales and stores listing images.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	// Listing CDNs fall back to WebP when the original variant is missing.
	_ "golang.org/x/image/webp"

	"github.com/cwygoda/grabber/internal/domain"
)

const (
	DefaultMinSide = 200
	DefaultQuality = 95
)

// ErrInvalidScale is returned for a scale factor that is not a positive
// finite number.
var ErrInvalidScale = errors.New("scale factor must be a positive number")

// Options tune a Pipeline. Zero values select the defaults.
type Options struct {
	// MinSide is the smallest width and height kept; smaller images are
	// treated as thumbnails.
	MinSide int
	// Quality is the JPEG quality, 1 to 100.
	Quality int
	// Workers bounds concurrent fetch/decode/resize work. Saving is
	// always done by a single writer in input order.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.MinSide <= 0 {
		o.MinSide = DefaultMinSide
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// Pipeline turns image URLs into numbered JPEG files.
type Pipeline struct {
	fetcher domain.Fetcher
	log     *zap.Logger
	opts    Options
	encode  func(w io.Writer, img image.Image, quality int) error
}

// New creates a Pipeline.
func New(fetcher domain.Fetcher, log *zap.Logger, opts Options) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{fetcher: fetcher, log: log, opts: opts.withDefaults(), encode: encodeJPEG}
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// FileName returns the name of the n-th saved image.
func FileName(n int) string {
	return fmt.Sprintf("imagem_%d.jpg", n)
}

// ProcessAndSave fetches every URL, drops images smaller than MinSide on
// either side, upscales the rest by scale with a Lanczos filter and saves
// them as dir/imagem_<n>.jpg, n counting saved images from 1.
//
// Only an invalid scale or a failure to create dir is returned as an
// error before work starts. Per-image failures are logged and recorded
// in the summary. A cancelled ctx stops the loop between images and the
// summary so far is returned with ctx.Err().
func (p *Pipeline) ProcessAndSave(ctx context.Context, urls []string, dir string, scale float64, sink domain.StatusSink) (Summary, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidScale, scale)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Summary{}, fmt.Errorf("create destination dir: %w", err)
	}
	if sink == nil {
		sink = domain.Discard
	}

	summary := Summary{Total: len(urls)}
	if p.opts.Workers > 1 && len(urls) > 1 {
		return p.runConcurrent(ctx, urls, dir, scale, &lockedSink{sink: sink}, summary)
	}

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		sink.Status(progress(i+1, summary.Total))
		img, res := p.prepare(ctx, i+1, u, scale)
		p.finish(dir, img, res, &summary, sink)
	}
	return summary, nil
}

// prepared carries a resized image from a worker to the writer.
type prepared struct {
	img image.Image
	res Result
}

// runConcurrent prepares up to Workers images at once. The dispatcher
// emits progress in index order and a slot is released only after the
// writer has consumed it, so at most Workers decoded images are held.
func (p *Pipeline) runConcurrent(ctx context.Context, urls []string, dir string, scale float64, sink domain.StatusSink, summary Summary) (Summary, error) {
	slots := make([]chan prepared, len(urls))
	for i := range slots {
		slots[i] = make(chan prepared, 1)
	}
	sem := semaphore.NewWeighted(int64(p.opts.Workers))

	var g errgroup.Group
	g.Go(func() error {
		for i, u := range urls {
			if ctx.Err() != nil || sem.Acquire(ctx, 1) != nil {
				for _, slot := range slots[i:] {
					close(slot)
				}
				return nil
			}
			sink.Status(progress(i+1, summary.Total))
			g.Go(func() error {
				img, res := p.prepare(ctx, i+1, u, scale)
				slots[i] <- prepared{img: img, res: res}
				return nil
			})
		}
		return nil
	})

	var err error
	for _, slot := range slots {
		item, ok := <-slot
		if !ok {
			err = ctx.Err()
			break
		}
		p.finish(dir, item.img, item.res, &summary, sink)
		sem.Release(1)
	}
	g.Wait()
	return summary, err
}

// prepare fetches, decodes, filters and resizes one image. A returned
// result with a zero Outcome is ready to be saved.
func (p *Pipeline) prepare(ctx context.Context, index int, url string, scale float64) (img image.Image, res Result) {
	res = Result{Index: index, URL: url}
	defer func() {
		if r := recover(); r != nil {
			img = nil
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("panic processing image: %v", r)
		}
	}()

	// Cancellation applies between images; a started image runs to completion.
	data, err := p.fetcher.Fetch(context.WithoutCancel(ctx), url)
	if err != nil {
		return nil, failed(res, fmt.Errorf("fetch: %w", err))
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, failed(res, fmt.Errorf("decode: %w", err))
	}

	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < p.opts.MinSide || height < p.opts.MinSide {
		res.Outcome = OutcomeFiltered
		res.Width, res.Height = width, height
		return nil, res
	}

	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth <= 0 || newHeight <= 0 {
		return nil, failed(res, fmt.Errorf("resize %dx%d by %v: empty result", width, height, scale))
	}

	resized := imaging.Resize(src, newWidth, newHeight, imaging.Lanczos)
	res.Width, res.Height = newWidth, newHeight
	return opaque(resized), res
}

// finish saves a prepared image, records the result and emits the
// filter notice. Only a written file advances the save counter.
func (p *Pipeline) finish(dir string, img image.Image, res Result, summary *Summary, sink domain.StatusSink) {
	if res.Outcome == 0 {
		path := filepath.Join(dir, FileName(summary.Saved+1))
		if err := p.writeJPEG(path, img); err != nil {
			res = failed(res, fmt.Errorf("save: %w", err))
		} else {
			res.Outcome = OutcomeSaved
			res.Path = path
		}
	}

	log := p.log.With(zap.Int("index", res.Index), zap.String("url", res.URL))
	switch res.Outcome {
	case OutcomeSaved:
		summary.Saved++
		log.Debug("image saved", zap.String("path", res.Path), zap.Int("width", res.Width), zap.Int("height", res.Height))
	case OutcomeFiltered:
		sink.Status(fmt.Sprintf("skipping small image %d of %d (%dx%d px)", res.Index, summary.Total, res.Width, res.Height))
		log.Debug("image below minimum size", zap.Int("width", res.Width), zap.Int("height", res.Height))
	case OutcomeFailed:
		log.Warn("image skipped", zap.Error(res.Err))
	}
	summary.Results = append(summary.Results, res)
}

func (p *Pipeline) writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.encode(f, img, p.opts.Quality); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// opaque drops the alpha channel in place so the encoder sees plain
// three-channel color. Color values are kept as stored, not composited.
func opaque(img *image.NRGBA) *image.NRGBA {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func failed(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}

func progress(i, total int) string {
	return fmt.Sprintf("processing image %d of %d...", i, total)
}

// lockedSink serializes status delivery from the dispatcher and writer.
type lockedSink struct {
	mu   sync.Mutex
	sink domain.StatusSink
}

func (s *lockedSink) Status(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Status(msg)
}
