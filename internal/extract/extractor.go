// Package extract recovers product image URLs from listing pages.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/cwygoda/grabber/internal/domain"
)

// imageSelector matches the product gallery images of a listing page.
const imageSelector = "img.ui-pdp-image"

// CDN size suffixes. Low and medium variants map to the original.
const (
	lowResSuffix      = "-F.webp"
	mediumResSuffix   = "-W.webp"
	originalResSuffix = "-O.jpg"
)

// Extractor fetches listing pages and returns their image URLs.
type Extractor struct {
	fetcher domain.Fetcher
	log     *zap.Logger
}

// New creates an Extractor.
func New(fetcher domain.Fetcher, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, log: log}
}

// ImageURLs returns the original-resolution image URLs of a listing in
// document order. Fetch and parse failures are reported through sink and
// yield an empty result.
func (e *Extractor) ImageURLs(ctx context.Context, listing string, sink domain.StatusSink) []string {
	if sink == nil {
		sink = domain.Discard
	}
	sink.Status("analyzing listing...")

	body, err := e.fetcher.Fetch(ctx, listing)
	if err != nil {
		e.log.Warn("listing fetch failed", zap.String("url", listing), zap.Error(err))
		sink.Status(fmt.Sprintf("error analyzing listing: %v", err))
		return nil
	}

	urls, err := Parse(bytes.NewReader(body))
	if err != nil {
		e.log.Warn("listing parse failed", zap.String("url", listing), zap.Error(err))
		sink.Status(fmt.Sprintf("error analyzing listing: %v", err))
		return nil
	}

	if len(urls) == 0 {
		sink.Status("no images found in listing")
	} else {
		sink.Status(fmt.Sprintf("found %d images", len(urls)))
	}
	e.log.Debug("listing analyzed", zap.String("url", listing), zap.Int("images", len(urls)))
	return urls
}

// Parse reads listing HTML and returns the rewritten image URLs. Each
// image contributes its lazy-load source when set, its direct source
// otherwise; images with neither are skipped. Duplicates are kept.
func Parse(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var urls []string
	doc.Find(imageSelector).Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("data-src", "")
		if src == "" {
			src = img.AttrOr("src", "")
		}
		if src == "" {
			return
		}
		urls = append(urls, Rewrite(src))
	})
	return urls, nil
}

// Rewrite maps a low or medium resolution CDN URL to its original
// resolution variant. Other URLs are returned unchanged.
func Rewrite(src string) string {
	src = strings.ReplaceAll(src, lowResSuffix, originalResSuffix)
	return strings.ReplaceAll(src, mediumResSuffix, originalResSuffix)
}
