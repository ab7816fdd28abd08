package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type CompareOp byte

const (
	CompareEqual   CompareOp = '='
	CompareLess    CompareOp = '<'
	CompareGreater CompareOp = '>'
)

type DimensionFilter struct {
	Op    CompareOp
	Value int
}

func (f DimensionFilter) Matches(v int) bool {
	switch f.Op {
	case CompareLess:
		return v < f.Value
	case CompareGreater:
		return v > f.Value
	default:
		return v == f.Value
	}
}

type RatioFilter struct {
	Width  int
	Height int
}

// Query is a parsed search specification: plain tags plus the
// attribute constraints recognized in free-form terms.
type Query struct {
	Tags   []string
	Site   string
	Rating string
	Width  *DimensionFilter
	Height *DimensionFilter
	Ratio  *RatioFilter
	Pool   int
	Limit  int

	Blacklist []string
	Whitelist []string
}

// ParseQuery splits free-form search terms into plain tags and
// attribute constraints. Terms look like `rating:s`, `width:>1000`,
// `height:<600`, `ratio:16:9`, `pool:42`, `limit:100`, `site:konachan`.
func ParseQuery(terms []string) (Query, error) {
	var q Query
	var tags []string

	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}

		switch {
		case strings.HasPrefix(term, "site:"):
			q.Site = strings.TrimPrefix(term, "site:")
		case strings.HasPrefix(term, "rating:"):
			q.Rating = strings.TrimPrefix(term, "rating:")
		case strings.HasPrefix(term, "width:"):
			f, err := parseDimension(strings.TrimPrefix(term, "width:"))
			if err != nil {
				return q, fmt.Errorf("invalid width term %q: %v", term, err)
			}
			q.Width = f
		case strings.HasPrefix(term, "height:"):
			f, err := parseDimension(strings.TrimPrefix(term, "height:"))
			if err != nil {
				return q, fmt.Errorf("invalid height term %q: %v", term, err)
			}
			q.Height = f
		case strings.HasPrefix(term, "ratio:"):
			parts := strings.Split(term, ":")
			if len(parts) != 3 {
				return q, fmt.Errorf("invalid ratio term %q", term)
			}
			w, errW := strconv.Atoi(parts[1])
			h, errH := strconv.Atoi(parts[2])
			if errW != nil || errH != nil || h == 0 {
				return q, fmt.Errorf("invalid ratio term %q", term)
			}
			q.Ratio = &RatioFilter{Width: w, Height: h}
		case strings.HasPrefix(term, "pool:"):
			id, err := strconv.Atoi(strings.TrimPrefix(term, "pool:"))
			if err != nil {
				return q, fmt.Errorf("invalid pool term %q: %v", term, err)
			}
			q.Pool = id
		case strings.HasPrefix(term, "limit:"):
			n, err := strconv.Atoi(strings.TrimPrefix(term, "limit:"))
			if err != nil {
				return q, fmt.Errorf("invalid limit term %q: %v", term, err)
			}
			q.Limit = n
		default:
			tags = append(tags, term)
		}
	}

	q.Tags = lo.Uniq(tags)
	return q, nil
}

func parseDimension(s string) (*DimensionFilter, error) {
	op := CompareEqual
	if strings.HasPrefix(s, "<") || strings.HasPrefix(s, ">") {
		op = CompareOp(s[0])
		s = s[1:]
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &DimensionFilter{Op: op, Value: v}, nil
}

// Apply filters a normalized batch in place of the remote doing it for
// us, preserving input order.
//
// Blacklist semantics: a post whose tags intersect the blacklist is
// dropped, unless they also intersect the whitelist. The whitelist is
// an override, not an additive filter.
func (q Query) Apply(posts []booru.Record) []booru.Record {
	if len(q.Blacklist) > 0 {
		before := len(posts)
		posts = lo.Filter(posts, func(item booru.Record, _ int) bool {
			if !item.HasAnyTag(q.Blacklist) {
				return true
			}
			return len(q.Whitelist) > 0 && item.HasAnyTag(q.Whitelist)
		})
		if removed := before - len(posts); removed > 0 {
			log.Debug().Int("count", removed).Msg("Posts filtered by the blacklist...")
		}
	}

	return lo.Filter(posts, func(item booru.Record, _ int) bool {
		if q.Rating != "" && item.Rating != q.Rating {
			return false
		}
		if q.Width != nil && !q.Width.Matches(item.Width) {
			return false
		}
		if q.Height != nil && !q.Height.Matches(item.Height) {
			return false
		}
		if q.Ratio != nil {
			if item.Height == 0 {
				return false
			}
			// Exact float comparison, matching upstream search behavior.
			want := float64(q.Ratio.Width) / float64(q.Ratio.Height)
			if float64(item.Width)/float64(item.Height) != want {
				return false
			}
		}
		return true
	})
}

// FilterFunc adapts the query for use inside a listing client.
func (q Query) FilterFunc() booru.FilterFunc {
	return func(posts []booru.Record) []booru.Record {
		return q.Apply(posts)
	}
}
