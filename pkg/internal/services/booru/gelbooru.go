package booru

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const gelbooruPostAPI = "/index.php?page=dapi&s=post&q=index"

// Gelbooru speaks the XML listing dialect. Pagination is page-only;
// the upstream pid parameter is 0-based while we expose 1-based pages
// like the JSON dialect.
type Gelbooru struct {
	host    string
	hc      *http.Client
	limiter *rate.Limiter
	filter  FilterFunc
}

func NewGelbooru(host string, filter FilterFunc) *Gelbooru {
	return &Gelbooru{
		host:    strings.TrimRight(host, "/"),
		hc:      &http.Client{},
		limiter: newLimiter(),
		filter:  filter,
	}
}

func (v *Gelbooru) Host() string {
	return v.host
}

func (v *Gelbooru) PostsPage(ctx context.Context, tags string, page, limit int) ([]Record, error) {
	target := fmt.Sprintf("%s%s&tags=%s&pid=%d&limit=%d",
		v.host, gelbooruPostAPI, url.QueryEscape(tags), page-1, limit)
	log.Debug().Str("url", target).Msg("Fetching post listing...")

	body, err := fetchBody(ctx, v.hc, v.limiter, target)
	if err != nil {
		return nil, err
	}

	records, err := decodePostsXML(body)
	if err != nil {
		return nil, err
	}

	if v.filter != nil {
		records = v.filter(records)
	}

	return records, nil
}

func (v *Gelbooru) PostsBefore(ctx context.Context, beforeID int, tags string, limit int) ([]Record, error) {
	return nil, fmt.Errorf("before_id on %s: %w", v.host, ErrUnsupportedMode)
}

// xmlPost mirrors one <post .../> element; every field of interest is
// an attribute on it.
type xmlPost struct {
	ID            int     `xml:"id,attr"`
	Tags          *string `xml:"tags,attr"`
	Width         int     `xml:"width,attr"`
	Height        int     `xml:"height,attr"`
	Rating        string  `xml:"rating,attr"`
	Score         int     `xml:"score,attr"`
	Author        string  `xml:"author,attr"`
	CreatorID     *int    `xml:"creator_id,attr"`
	Source        string  `xml:"source,attr"`
	MD5           string  `xml:"md5,attr"`
	FileURL       string  `xml:"file_url,attr"`
	FileSize      int64   `xml:"file_size,attr"`
	ParentID      *int    `xml:"parent_id,attr"`
	Status        string  `xml:"status,attr"`
	Change        int     `xml:"change,attr"`
	CreatedAt     string  `xml:"created_at,attr"`
	SampleURL     string  `xml:"sample_url,attr"`
	SampleWidth   int     `xml:"sample_width,attr"`
	SampleHeight  int     `xml:"sample_height,attr"`
	PreviewURL    string  `xml:"preview_url,attr"`
	PreviewWidth  int     `xml:"preview_width,attr"`
	PreviewHeight int     `xml:"preview_height,attr"`
	HasNotes      *bool   `xml:"has_notes,attr"`
	HasComments   *bool   `xml:"has_comments,attr"`
	HasChildren   *bool   `xml:"has_children,attr"`
}

func decodePostsXML(body []byte) ([]Record, error) {
	var doc struct {
		XMLName xml.Name  `xml:"posts"`
		Posts   []xmlPost `xml:"post"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse listing XML: %v", err)
	}

	raws := make([]rawPost, 0, len(doc.Posts))
	for _, p := range doc.Posts {
		raw := rawPost{
			ID:            p.ID,
			Tags:          p.Tags,
			Width:         p.Width,
			Height:        p.Height,
			Rating:        p.Rating,
			Score:         p.Score,
			Author:        p.Author,
			CreatorID:     p.CreatorID,
			Source:        p.Source,
			MD5:           p.MD5,
			FileURL:       p.FileURL,
			FileSize:      p.FileSize,
			ParentID:      p.ParentID,
			Status:        p.Status,
			Change:        p.Change,
			SampleURL:     p.SampleURL,
			SampleWidth:   p.SampleWidth,
			SampleHeight:  p.SampleHeight,
			PreviewURL:    p.PreviewURL,
			PreviewWidth:  p.PreviewWidth,
			PreviewHeight: p.PreviewHeight,
			HasNotes:      p.HasNotes,
			HasComments:   p.HasComments,
			HasChildren:   p.HasChildren,
		}
		if p.CreatedAt != "" {
			raw.CreatedAt, _ = jsoniter.Marshal(p.CreatedAt)
		}
		raws = append(raws, raw)
	}

	return normalizeBatch(raws)
}
