package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
)

const (
	renderArtifactName = "output.png"
	visualsPrefix      = "visuals/"
	defaultRunTimeout  = 120 * time.Second
)

// VisualizationRenderer turns planned visualization requests into artifact
// references. Chart and table requests go through code generation and the
// sandbox; image requests go to the image provider when one is configured.
// Rendering is per-item isolated: a failing item degrades to an inline
// marker string and never aborts the batch.
type VisualizationRenderer struct {
	logger  *slog.Logger
	llm     ports.TextGenerator
	image   ports.ImageGenerator // nil means placeholder references
	sandbox ports.CodeSandbox
	store   ports.ObjectStore

	runTimeout time.Duration
}

func NewVisualizationRenderer(
	logger *slog.Logger,
	llm ports.TextGenerator,
	image ports.ImageGenerator,
	sandbox ports.CodeSandbox,
	store ports.ObjectStore,
) *VisualizationRenderer {
	return &VisualizationRenderer{
		logger:     logger,
		llm:        llm,
		image:      image,
		sandbox:    sandbox,
		store:      store,
		runTimeout: defaultRunTimeout,
	}
}

// Render processes all requests, possibly in parallel, and returns results
// in the original request order. The merger pairs visuals with paragraphs
// by index, so order preservation is a contract.
func (r *VisualizationRenderer) Render(ctx context.Context, reqs []domain.VisualRequest) []domain.VisualResult {
	results := make([]domain.VisualResult, len(reqs))

	var g errgroup.Group
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = domain.VisualResult{
				Kind: req.Kind,
				Text: req.Text,
				Ref:  r.renderOne(ctx, req),
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *VisualizationRenderer) renderOne(ctx context.Context, req domain.VisualRequest) string {
	start := time.Now()
	defer func() {
		r.logger.Info("visual rendered", "kind", req.Kind, "duration_ms", time.Since(start).Milliseconds())
	}()

	switch req.Kind {
	case domain.VisualChart, domain.VisualTable:
		return r.renderFigure(ctx, req)
	case domain.VisualImage:
		return r.renderImage(ctx, req)
	default:
		return fmt.Sprintf("[Unsupported type: %s]", req.Kind)
	}
}

// renderFigure generates plotting code, runs it in the sandbox, and uploads
// the resulting artifact. The sandbox writes into a per-call temp directory
// so concurrent renders cannot collide on the fixed artifact name.
func (r *VisualizationRenderer) renderFigure(ctx context.Context, req domain.VisualRequest) string {
	code, err := r.llm.GenerateText(ctx, codeGenPrompt+req.Text)
	if err != nil {
		r.logger.Warn("code generation failed", "kind", req.Kind, "error", err)
		return fmt.Sprintf("[Error: %v]", err)
	}
	code = stripCodeFence(code)

	workDir, err := os.MkdirTemp("", "skald-render-")
	if err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}
	defer os.RemoveAll(workDir)

	runCtx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	output, runErr := r.sandbox.Run(runCtx, code, workDir)
	if runErr != nil {
		r.logger.Warn("sandbox run failed", "kind", req.Kind, "error", runErr)
	}

	artifact := filepath.Join(workDir, renderArtifactName)
	if _, err := os.Stat(artifact); err != nil {
		// The interpreter ran but produced no figure; surface its output.
		return fmt.Sprintf("[Image not created: %s]", output)
	}

	name := fmt.Sprintf("output-%s.png", uuid.New().String()[:8])
	renamed := filepath.Join(workDir, name)
	if err := os.Rename(artifact, renamed); err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}

	body, err := os.ReadFile(renamed)
	if err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}

	ref, err := r.store.Put(ctx, visualsPrefix+name, body, "image/png")
	if err != nil {
		r.logger.Warn("artifact upload failed", "name", name, "error", err)
		return fmt.Sprintf("[Error: %v]", err)
	}
	return ref
}

// renderImage calls the image provider; without one, or on any provider
// error, it degrades to an inline placeholder built from the prompt.
func (r *VisualizationRenderer) renderImage(ctx context.Context, req domain.VisualRequest) string {
	if r.image != nil {
		url, err := r.image.GenerateImage(ctx, req.Text)
		if err == nil {
			return url
		}
		r.logger.Warn("image generation failed, using placeholder", "error", err)
	}
	return fmt.Sprintf("[Visual placeholder for: %s...]", truncate(req.Text, 50))
}
