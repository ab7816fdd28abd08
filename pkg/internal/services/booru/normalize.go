package booru

import (
	"strings"
	"time"

	"github.com/akina-dev/boorud/pkg/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

// createdAtLayout is the RFC-1123-like form structured timestamps are
// flattened into, matching what the JSON dialect returns natively.
const createdAtLayout = "Mon, 02 Jan 2006 15:04:05 +0000"

// rawPost is the wire shape shared by both dialects; the XML dialect
// converts element attributes into it before normalization.
type rawPost struct {
	ID            int                 `json:"id"`
	Tags          *string             `json:"tags"`
	Width         int                 `json:"width"`
	Height        int                 `json:"height"`
	Rating        string              `json:"rating"`
	Score         int                 `json:"score"`
	Author        string              `json:"author"`
	CreatorID     *int                `json:"creator_id"`
	Source        string              `json:"source"`
	MD5           string              `json:"md5"`
	FileURL       string              `json:"file_url"`
	FileSize      int64               `json:"file_size"`
	ParentID      *int                `json:"parent_id"`
	Status        string              `json:"status"`
	Change        int                 `json:"change"`
	CreatedAt     jsoniter.RawMessage `json:"created_at"`
	SampleURL     string              `json:"sample_url"`
	SampleWidth   int                 `json:"sample_width"`
	SampleHeight  int                 `json:"sample_height"`
	PreviewURL    string              `json:"preview_url"`
	PreviewWidth  int                 `json:"preview_width"`
	PreviewHeight int                 `json:"preview_height"`
	HasNotes      *bool               `json:"has_notes"`
	HasComments   *bool               `json:"has_comments"`
	HasChildren   *bool               `json:"has_children"`
}

// Normalize turns a raw post into its canonical Record. A record with
// no tags field is structurally invalid and fails the whole batch,
// since tags drive every filter downstream.
func (raw rawPost) Normalize() (Record, error) {
	if raw.ID == 0 {
		return Record{}, &MalformedRecordError{Field: "id"}
	}
	if raw.Tags == nil {
		return Record{}, &MalformedRecordError{Field: "tags"}
	}

	rec := Record{
		PostID:        raw.ID,
		Tags:          lo.Uniq(strings.Fields(*raw.Tags)),
		Width:         raw.Width,
		Height:        raw.Height,
		Rating:        raw.Rating,
		Score:         raw.Score,
		Author:        raw.Author,
		CreatorID:     raw.CreatorID,
		Source:        raw.Source,
		MD5:           raw.MD5,
		FileURL:       raw.FileURL,
		FileSize:      raw.FileSize,
		ParentID:      raw.ParentID,
		Status:        raw.Status,
		Change:        raw.Change,
		CreatedAt:     flattenTimestamp(raw.CreatedAt),
		SampleURL:     raw.SampleURL,
		SampleWidth:   raw.SampleWidth,
		SampleHeight:  raw.SampleHeight,
		PreviewURL:    raw.PreviewURL,
		PreviewWidth:  raw.PreviewWidth,
		PreviewHeight: raw.PreviewHeight,
		HasNotes:      triState(raw.HasNotes),
		HasComments:   triState(raw.HasComments),
		HasChildren:   triState(raw.HasChildren),
	}

	return rec, nil
}

func normalizeBatch(raws []rawPost) ([]Record, error) {
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := raw.Normalize()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func triState(v *bool) models.TriState {
	if v == nil {
		return models.TriUnknown
	}
	if *v {
		return models.TriTrue
	}
	return models.TriFalse
}

// flattenTimestamp accepts the two encodings seen in the wild: a plain
// string, or an object wrapping epoch seconds like {"s": 1336671600}.
func flattenTimestamp(raw jsoniter.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			S int64 `json:"s"`
		}
		if err := jsoniter.Unmarshal(raw, &wrapped); err != nil || wrapped.S == 0 {
			return ""
		}
		return time.Unix(wrapped.S, 0).UTC().Format(createdAtLayout)
	}

	var s string
	if err := jsoniter.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

// parseRemoteTime is lenient about upstream pool timestamps, which
// show up either as RFC 3339 or as the createdAt layout.
func parseRemoteTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, createdAtLayout, time.RubyDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
