package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"askvid/internal/metrics"
	"askvid/internal/models"
)

const defaultWatchBase = "https://www.youtube.com"

// FetchOptions configures a transcript fetch.
type FetchOptions struct {
	// Language is a BCP-47 caption language preference. Empty picks the
	// first available track.
	Language string

	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64

	// OnRetry is invoked before each retry, for progress reporting
	// only. It must not affect control flow.
	OnRetry func(attempt int, err error)
}

func (o *FetchOptions) applyDefaults() {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay == 0 {
		o.InitialDelay = time.Second
	}
	if o.BackoffMultiplier == 0 {
		o.BackoffMultiplier = 2
	}
}

// Fetcher retrieves transcripts from YouTube's caption endpoints.
// It is stateless across calls and safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Collector

	// watchBase is overridable in tests.
	watchBase string
}

// NewFetcher creates a transcript fetcher.
func NewFetcher(logger *slog.Logger, mc *metrics.Collector) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		metrics:   mc,
		watchBase: defaultWatchBase,
	}
}

// Fetch resolves the input to a video ID, downloads the caption track
// and returns the transcript. Failed attempts are retried with
// exponential backoff; a source that yields no usable segments after
// all retries fails with ErrTranscriptUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, videoIDOrURL string, opts FetchOptions) (*models.TranscriptDocument, error) {
	opts.applyDefaults()

	videoID, err := ExtractVideoID(videoIDOrURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var lastErr error
	delay := opts.InitialDelay

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, lastErr)
			}
			f.logger.Debug("retrying transcript fetch", "video_id", videoID, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * opts.BackoffMultiplier)
		}

		doc, err := f.fetchOnce(ctx, videoID, opts.Language)
		if err != nil {
			// Missing videos stay missing, skip the retries.
			if errors.Is(err, models.ErrVideoNotFound) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if f.metrics != nil {
			f.metrics.RecordTiming(metrics.OpTranscriptFetch, time.Since(start))
		}
		f.logger.Info("transcript fetched", "video_id", videoID, "segments", len(doc.Segments))
		return doc, nil
	}

	return nil, fmt.Errorf("%w for video %s: %v", models.ErrTranscriptUnavailable, videoID, lastErr)
}

// captionTracksPattern locates the caption track list embedded in the
// watch page's player response JSON.
var captionTracksPattern = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind,omitempty"`
}

func (f *Fetcher) fetchOnce(ctx context.Context, videoID, language string) (*models.TranscriptDocument, error) {
	page, err := f.get(ctx, fmt.Sprintf("%s/watch?v=%s", f.watchBase, videoID))
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	if strings.Contains(page, `"playabilityStatus":{"status":"ERROR"`) {
		return nil, fmt.Errorf("%w: %s", models.ErrVideoNotFound, videoID)
	}

	m := captionTracksPattern.FindStringSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("no caption tracks for video %s", videoID)
	}

	var tracks []captionTrack
	if err := json.Unmarshal([]byte(m[1]), &tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks: %w", err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("empty caption track list for video %s", videoID)
	}

	track := pickTrack(tracks, language)
	segments, err := f.fetchTrack(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}

	usable := 0
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) != "" {
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("caption track for video %s contains no text", videoID)
	}

	return &models.TranscriptDocument{
		VideoID:  videoID,
		Language: track.LanguageCode,
		Segments: segments,
	}, nil
}

// pickTrack prefers an exact language match, then a manual (non-ASR)
// track, then the first track.
func pickTrack(tracks []captionTrack, language string) captionTrack {
	if language != "" {
		for _, t := range tracks {
			if t.LanguageCode == language {
				return t
			}
		}
	}
	for _, t := range tracks {
		if t.Kind != "asr" {
			return t
		}
	}
	return tracks[0]
}

// timedText is the XML shape of the timedtext caption endpoint.
type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

func (f *Fetcher) fetchTrack(ctx context.Context, baseURL string) ([]models.TranscriptSegment, error) {
	body, err := f.get(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch caption track: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal([]byte(body), &tt); err != nil {
		return nil, fmt.Errorf("parse caption track: %w", err)
	}

	segments := make([]models.TranscriptSegment, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		start := t.Start
		segments = append(segments, models.TranscriptSegment{
			Text:         html.UnescapeString(t.Body),
			StartSeconds: &start,
			Duration:     t.Dur,
		})
	}
	return segments, nil
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", models.ErrVideoNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}
