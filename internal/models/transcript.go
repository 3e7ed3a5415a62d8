// Package models defines the shared data types for askvid.
package models

import "strings"

// TranscriptSegment is a single caption cue from the transcript source.
type TranscriptSegment struct {
	Text string `json:"text"`
	// StartSeconds is the playback offset of the segment, when the
	// source provides one.
	StartSeconds *float64 `json:"start_seconds,omitempty"`
	Duration     float64  `json:"duration,omitempty"`
}

// TranscriptDocument is the full transcript of one video.
// It is immutable once produced by a fetch.
type TranscriptDocument struct {
	VideoID  string              `json:"video_id"`
	Language string              `json:"language,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
}

// Text returns the flat text view: non-empty segment texts joined
// with single spaces.
func (d *TranscriptDocument) Text() string {
	parts := make([]string, 0, len(d.Segments))
	for _, seg := range d.Segments {
		t := strings.TrimSpace(seg.Text)
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// OffsetAt returns the start offset of the segment whose cumulative
// flat-text position covers pos, or nil when no segment carries one.
// Used by the chunker to attach timestamps to chunks.
func (d *TranscriptDocument) OffsetAt(pos int) *float64 {
	cursor := 0
	var last *float64
	for _, seg := range d.Segments {
		t := strings.TrimSpace(seg.Text)
		if t == "" {
			continue
		}
		if seg.StartSeconds != nil {
			last = seg.StartSeconds
		}
		cursor += len(t) + 1 // joined with a single space
		if pos < cursor {
			return last
		}
	}
	return last
}
