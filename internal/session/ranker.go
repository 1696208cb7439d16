package session

import (
	"context"
	"image"

	"github.com/jmylchreest/colortrack/internal/colour"
	"github.com/jmylchreest/colortrack/internal/store"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

// Ranker turns an image into ranked swatches.
type Ranker interface {
	Rank(ctx context.Context, img image.Image) ([]swatch.Swatch, error)
}

// Recorder persists a completed extraction.
type Recorder interface {
	Record(ctx context.Context, img image.Image, swatches []swatch.Swatch) (store.Session, error)
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(ctx context.Context, img image.Image) ([]swatch.Swatch, error)

func (f RankerFunc) Rank(ctx context.Context, img image.Image) ([]swatch.Swatch, error) {
	return f(ctx, img)
}

// Pipeline extracts clusters with a colour extractor and ranks them.
type Pipeline struct {
	extractor colour.Extractor
	count     int
}

// NewPipeline builds the default Ranker for cfg.
func NewPipeline(cfg colour.ExtractorConfig) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	extractor, err := colour.NewExtractor(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	return &Pipeline{extractor: extractor, count: cfg.ColorCount}, nil
}

// NewPipelineWithExtractor wraps an existing extractor.
func NewPipelineWithExtractor(extractor colour.Extractor, count int) *Pipeline {
	return &Pipeline{extractor: extractor, count: count}
}

func (p *Pipeline) Rank(ctx context.Context, img image.Image) ([]swatch.Swatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Extraction errors reach the session state verbatim.
	clusters, err := p.extractor.Extract(img, p.count)
	if err != nil {
		return nil, err
	}

	return swatch.Rank(clusters), nil
}
