package preview

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"pagegen-backend/internal/config"
	"pagegen-backend/internal/metrics"
	"pagegen-backend/pkg/logger"
)

// Sandbox is the execution surface that compiles and displays a bundle.
type Sandbox interface {
	Boot(ctx context.Context, b Bundle) error
}

// Renderer turns artifact text into a bundle and boots the sandbox with it.
type Renderer struct {
	annotator Annotator
	sandbox   Sandbox
	minLength int
	assemble  AssembleOptions
	metrics   *metrics.Metrics
}

func NewRenderer(cfg config.PreviewConfig, sandbox Sandbox, m *metrics.Metrics) *Renderer {
	return &Renderer{
		annotator: NewHookAnnotator(cfg.Directive),
		sandbox:   sandbox,
		minLength: cfg.MinLength,
		assemble: AssembleOptions{
			Template:     cfg.Template,
			Dependencies: cfg.Dependencies,
			Options: Options{
				AutoRun:    cfg.AutoRun,
				AutoReload: cfg.AutoReload,
			},
		},
		metrics: m,
	}
}

// WithAnnotator swaps the source annotator.
func (r *Renderer) WithAnnotator(a Annotator) *Renderer {
	r.annotator = a
	return r
}

// Placeholder returns the bundle used when there is nothing to render.
func (r *Renderer) Placeholder() Bundle {
	b, _ := Assemble(PlaceholderPage, r.assemble)
	b.Placeholder = true
	return b
}

// Render boots the sandbox for src on every call, substituting the
// placeholder page for short input or when the bundle cannot be built.
// It returns the bundle last handed to the sandbox.
func (r *Renderer) Render(ctx context.Context, src string) Bundle {
	var b Bundle
	if utf8.RuneCountInString(strings.TrimSpace(src)) < r.minLength {
		b = r.Placeholder()
	} else {
		built, err := r.build(src)
		if err != nil {
			logger.Warnf("Preview assembly failed, using placeholder: %v", err)
			built = r.Placeholder()
		}
		b = built
	}

	err := r.boot(ctx, b)
	if err == nil || b.Placeholder {
		if err != nil {
			logger.Errorf("Placeholder boot failed: %v", err)
		}
		return b
	}

	logger.Warnf("Sandbox boot failed, retrying with placeholder: %v", err)
	fallback := r.Placeholder()
	if err := r.boot(ctx, fallback); err != nil {
		logger.Errorf("Placeholder boot failed: %v", err)
	}
	return fallback
}

func (r *Renderer) build(src string) (b Bundle, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("annotate: %v", rec)
		}
	}()

	return Assemble(r.annotator.Annotate(src), r.assemble)
}

func (r *Renderer) boot(ctx context.Context, b Bundle) error {
	kind := "source"
	if b.Placeholder {
		kind = "placeholder"
	}

	if err := r.sandbox.Boot(ctx, b); err != nil {
		r.metrics.RecordBoot("failed")
		return err
	}
	r.metrics.RecordBoot(kind)
	return nil
}
