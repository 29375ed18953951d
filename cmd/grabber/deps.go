package main

import (
	"github.com/cwygoda/grabber/internal/adapter/fetch"
	"github.com/cwygoda/grabber/internal/extract"
	"github.com/cwygoda/grabber/internal/listing"
	"github.com/cwygoda/grabber/internal/pipeline"
)

// components builds the extractor and pipeline sharing one HTTP client.
func (a *app) components() (*extract.Extractor, *pipeline.Pipeline) {
	client := fetch.New(a.cfg.UserAgent, a.cfg.Timeout)
	ex := extract.New(client, a.log)
	p := pipeline.New(client, a.log, pipeline.Options{
		MinSide: a.cfg.MinSide,
		Quality: a.cfg.Quality,
		Workers: a.cfg.Workers,
	})
	return ex, p
}

func (a *app) grabber() *listing.Grabber {
	ex, p := a.components()
	return listing.New(ex, p, a.cfg.ImageDir, a.cfg.Scale, a.log)
}
