package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// VideoInfo is the metadata sidecar enrichment for a stored report.
type VideoInfo struct {
	Title     string `json:"youtube_title"`
	Channel   string `json:"youtube_channel"`
	Duration  string `json:"youtube_duration"`
	Thumbnail string `json:"youtube_thumbnail"`
}

// VideoInfoService looks up title/channel/duration/thumbnail through the
// YouTube Data API. Lookups are best-effort decoration: with no API key or
// on any failure it returns stable defaults built from the video id.
type VideoInfoService struct {
	logger *slog.Logger
	apiKey string
	client *http.Client
}

func NewVideoInfoService(logger *slog.Logger, apiKey string) *VideoInfoService {
	return &VideoInfoService{
		logger: logger,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Lookup never fails; it degrades to defaults.
func (s *VideoInfoService) Lookup(ctx context.Context, videoURL string) VideoInfo {
	videoID := ExtractVideoID(videoURL)
	fallback := defaultVideoInfo(videoID)

	if s.apiKey == "" || videoID == "" || videoID == "unknown" {
		return fallback
	}

	info, err := s.fetch(ctx, videoID)
	if err != nil {
		s.logger.Warn("video info lookup failed, using defaults", "video_id", videoID, "error", err)
		return fallback
	}
	return info
}

func (s *VideoInfoService) fetch(ctx context.Context, videoID string) (VideoInfo, error) {
	q := url.Values{}
	q.Set("id", videoID)
	q.Set("key", s.apiKey)
	q.Set("part", "snippet,contentDetails")

	endpoint := "https://www.googleapis.com/youtube/v3/videos?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VideoInfo{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return VideoInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VideoInfo{}, fmt.Errorf("videos API returned status %d", resp.StatusCode)
	}

	var result struct {
		Items []struct {
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
				Thumbnails   struct {
					Default struct {
						URL string `json:"url"`
					} `json:"default"`
				} `json:"thumbnails"`
			} `json:"snippet"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return VideoInfo{}, err
	}
	if len(result.Items) == 0 {
		return VideoInfo{}, fmt.Errorf("no items for video %s", videoID)
	}

	item := result.Items[0]
	info := defaultVideoInfo(videoID)
	if item.Snippet.Title != "" {
		info.Title = item.Snippet.Title
	}
	if item.Snippet.ChannelTitle != "" {
		info.Channel = item.Snippet.ChannelTitle
	}
	if item.Snippet.Thumbnails.Default.URL != "" {
		info.Thumbnail = item.Snippet.Thumbnails.Default.URL
	}
	if d := formatISODuration(item.ContentDetails.Duration); d != "" {
		info.Duration = d
	}
	return info, nil
}

func defaultVideoInfo(videoID string) VideoInfo {
	return VideoInfo{
		Title:     "YouTube Video - " + videoID,
		Channel:   "Unknown Channel",
		Duration:  "Unknown",
		Thumbnail: fmt.Sprintf("https://img.youtube.com/vi/%s/default.jpg", videoID),
	}
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// formatISODuration converts an ISO-8601 duration (PT4M13S) to a readable
// clock string (4:13). Returns "" for inputs it cannot parse.
func formatISODuration(iso string) string {
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil {
		return ""
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
