package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skaldhq/skald/internal/core/ports"
)

// ReportStructurer turns a raw transcript into a structured report through
// one generative call. A model failure here is fatal to the job: without
// the report text nothing downstream can run.
type ReportStructurer struct {
	logger *slog.Logger
	llm    ports.TextGenerator
}

func NewReportStructurer(logger *slog.Logger, llm ports.TextGenerator) *ReportStructurer {
	return &ReportStructurer{logger: logger, llm: llm}
}

// Structure returns the model's report text with surrounding whitespace
// trimmed. No retries: errors propagate as a step failure.
func (r *ReportStructurer) Structure(ctx context.Context, caption string) (string, error) {
	text, err := r.llm.GenerateText(ctx, structurePrompt+caption)
	if err != nil {
		return "", fmt.Errorf("report structuring failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
