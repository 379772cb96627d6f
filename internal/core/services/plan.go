package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
)

// VisualizationPlanner asks the model to decompose a report into typed
// visualization requests. Planning is decorative: any failure — model
// error, malformed JSON, wrong shape — degrades to an empty plan and the
// job continues without visuals.
type VisualizationPlanner struct {
	logger *slog.Logger
	llm    ports.TextGenerator
}

func NewVisualizationPlanner(logger *slog.Logger, llm ports.TextGenerator) *VisualizationPlanner {
	return &VisualizationPlanner{logger: logger, llm: llm}
}

// Plan returns the ordered visualization requests for a report. Never
// returns an error.
func (p *VisualizationPlanner) Plan(ctx context.Context, reportText string) []domain.VisualRequest {
	raw, err := p.llm.GenerateText(ctx, planPrompt+reportText)
	if err != nil {
		p.logger.Warn("visual planning call failed, continuing without visuals", "error", err)
		return nil
	}
	return parseVisualPlan(p.logger, raw)
}

// parseVisualPlan decodes the model's response defensively. Elements that
// are not objects or lack type/text are dropped; out-of-enum types pass
// through for the renderer to mark unsupported.
func parseVisualPlan(logger *slog.Logger, raw string) []domain.VisualRequest {
	content := stripCodeFence(raw)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		logger.Warn("visual plan is not a JSON array, continuing without visuals",
			"error", err, "response", truncate(raw, 200))
		return nil
	}

	var plan []domain.VisualRequest
	for _, item := range items {
		var req domain.VisualRequest
		if err := json.Unmarshal(item, &req); err != nil {
			continue
		}
		if req.Kind == "" || req.Text == "" {
			continue
		}
		if !domain.SupportedVisualKind(req.Kind) {
			logger.Warn("plan contains unsupported visual kind", "kind", req.Kind)
		}
		plan = append(plan, req)
	}
	return plan
}

// stripCodeFence removes an optional ```json ... ``` (or bare ```) wrapper.
func stripCodeFence(s string) string {
	content := strings.TrimSpace(s)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+len("```"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	return content
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
