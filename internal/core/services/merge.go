package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
)

// MergeReport interleaves report paragraphs with rendered visuals into one
// ordered section list. Visuals pair with paragraphs by positional index —
// visual i follows paragraph i — and leftovers append at the end. This is a
// deliberate contract with report viewers; do not attempt semantic pairing.
func MergeReport(reportText string, visuals []domain.VisualResult, youtubeURL string) domain.FinalOutput {
	var paragraphs []string
	for _, line := range strings.Split(strings.TrimSpace(reportText), "\n") {
		if p := strings.TrimSpace(line); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var sections []domain.Section
	if youtubeURL != "" {
		sections = append(sections, domain.Section{Type: domain.SectionSource, Content: youtubeURL})
	}

	for i, para := range paragraphs {
		sections = append(sections, domain.Section{Type: domain.SectionParagraph, Content: para})
		if i < len(visuals) {
			if s, ok := visualSection(visuals[i]); ok {
				sections = append(sections, s)
			}
		}
	}

	for j := len(paragraphs); j < len(visuals); j++ {
		if s, ok := visualSection(visuals[j]); ok {
			sections = append(sections, s)
		}
	}

	return domain.FinalOutput{
		Format:     "json",
		YoutubeURL: youtubeURL,
		Sections:   sections,
	}
}

// visualSection converts one visual result to a section, skipping results
// with an empty kind or reference.
func visualSection(v domain.VisualResult) (domain.Section, bool) {
	if v.Kind == "" || v.Ref == "" {
		return domain.Section{}, false
	}
	return domain.Section{Type: string(v.Kind), Src: v.Ref}, true
}

// ReportMerger produces the final output and persists it, plus a metadata
// record, to object storage. Persistence is best-effort: the merged output
// is returned to the orchestrator even when storage is down.
type ReportMerger struct {
	logger    *slog.Logger
	store     ports.ObjectStore
	videoInfo *VideoInfoService
}

func NewReportMerger(logger *slog.Logger, store ports.ObjectStore, videoInfo *VideoInfoService) *ReportMerger {
	return &ReportMerger{logger: logger, store: store, videoInfo: videoInfo}
}

// ReportKey is the object-storage key of a job's stored report.
func ReportKey(userID string, jobID domain.JobID) string {
	return fmt.Sprintf("reports/%s/%s_report.json", userID, jobID)
}

// MetadataKey is the object-storage key of a job's metadata record.
func MetadataKey(userID string, jobID domain.JobID) string {
	return fmt.Sprintf("metadata/%s/%s_metadata.json", userID, jobID)
}

// Merge builds the final output and stores report + metadata.
func (m *ReportMerger) Merge(ctx context.Context, state domain.PipelineState) domain.FinalOutput {
	out := MergeReport(state.ReportText, state.VisualResults, state.YoutubeURL)

	var reportURL string
	bestEffort(m.logger, "persist report", func() error {
		payload, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		reportURL, err = m.store.Put(ctx, ReportKey(state.UserID, state.JobID), payload, "application/json")
		return err
	})

	bestEffort(m.logger, "persist metadata", func() error {
		info := m.videoInfo.Lookup(ctx, state.YoutubeURL)
		meta := map[string]any{
			"youtube_url":       state.YoutubeURL,
			"user_id":           state.UserID,
			"job_id":            state.JobID,
			"timestamp":         time.Now().UTC().Format("2006-01-02 15:04:05"),
			"report_url":        reportURL,
			"youtube_title":     info.Title,
			"youtube_channel":   info.Channel,
			"youtube_duration":  info.Duration,
			"youtube_thumbnail": info.Thumbnail,
		}
		payload, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return err
		}
		_, err = m.store.Put(ctx, MetadataKey(state.UserID, state.JobID), payload, "application/json")
		return err
	})

	return out
}
