package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
)

const transcriptPrefix = "transcripts/"

// ExtractVideoID parses the canonical video id out of a YouTube URL.
// The id must match the one embedded in archived transcript filenames, so
// the rules are fixed: short-link host takes the path, canonical hosts take
// the v query parameter, anything else is "unknown".
func ExtractVideoID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	switch parsed.Hostname() {
	case "youtu.be":
		return strings.TrimPrefix(parsed.Path, "/")
	case "www.youtube.com", "youtube.com":
		return parsed.Query().Get("v")
	}
	return "unknown"
}

// userPrefix turns a user id (usually an email) into a storage path segment.
func userPrefix(userID string) string {
	return strings.NewReplacer("@", "_at_", ".", "_").Replace(userID)
}

// ContentAcquisition resolves a video URL to transcript text. Primary path
// is the captioning provider; when it errors or returns nothing, the
// transcript archive in object storage is searched by video id.
type ContentAcquisition struct {
	logger   *slog.Logger
	captions ports.CaptionProvider
	store    ports.ObjectStore
}

func NewContentAcquisition(logger *slog.Logger, captions ports.CaptionProvider, store ports.ObjectStore) *ContentAcquisition {
	return &ContentAcquisition{
		logger:   logger,
		captions: captions,
		store:    store,
	}
}

// Fetch returns the transcript for videoURL, or domain.ErrContentNotFound
// when neither the provider nor the archive has content.
func (a *ContentAcquisition) Fetch(ctx context.Context, videoURL, userID string) (string, error) {
	caption, err := a.captions.FetchCaption(ctx, videoURL)
	if err != nil {
		a.logger.Warn("caption provider failed, trying archive", "url", videoURL, "error", err)
	} else if strings.TrimSpace(caption) != "" {
		a.archive(ctx, videoURL, userID, caption)
		return caption, nil
	}

	archived, err := a.fromArchive(ctx, videoURL)
	if err != nil {
		return "", err
	}
	return archived, nil
}

// archive stores a freshly fetched transcript so later runs of the same
// video can fall back to it. Both writes are best-effort.
func (a *ContentAcquisition) archive(ctx context.Context, videoURL, userID, caption string) {
	videoID := ExtractVideoID(videoURL)
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	key := fmt.Sprintf("%s%s/%s_%s.txt", transcriptPrefix, userPrefix(userID), videoID, suffix)

	bestEffort(a.logger, "archive transcript", func() error {
		_, err := a.store.Put(ctx, key, []byte(caption), "text/plain; charset=utf-8")
		return err
	})

	meta := map[string]any{
		"email":          userID,
		"youtube_url":    videoURL,
		"upload_time":    time.Now().UTC().Format(time.RFC3339),
		"content_length": len(caption),
		"video_id":       videoID,
	}
	bestEffort(a.logger, "archive transcript metadata", func() error {
		payload, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		_, err = a.store.Put(ctx, key+".meta.json", payload, "application/json")
		return err
	})
}

// fromArchive returns the most recently modified archived transcript whose
// key contains the URL's video id.
func (a *ContentAcquisition) fromArchive(ctx context.Context, videoURL string) (string, error) {
	videoID := ExtractVideoID(videoURL)

	objects, err := a.store.List(ctx, transcriptPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to list transcript archive: %w", err)
	}

	var best *ports.ObjectInfo
	for i, obj := range objects {
		if strings.HasSuffix(obj.Key, ".meta.json") {
			continue
		}
		if !strings.Contains(obj.Key, videoID) {
			continue
		}
		if best == nil || obj.LastModified.After(best.LastModified) {
			best = &objects[i]
		}
	}
	if best == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrContentNotFound, videoURL)
	}

	body, err := a.store.Get(ctx, best.Key)
	if err != nil {
		return "", fmt.Errorf("failed to read archived transcript %s: %w", best.Key, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrContentNotFound, videoURL)
	}

	a.logger.Info("using archived transcript", "key", best.Key, "video_id", videoID)
	return string(body), nil
}
