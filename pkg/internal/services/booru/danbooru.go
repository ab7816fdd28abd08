package booru

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	danbooruPostAPI = "/post/index.json"
	danbooruPoolAPI = "/pool/index.json"
)

// Danbooru speaks the JSON listing dialect. It supports both cursor
// strategies and the pool extension.
type Danbooru struct {
	host    string
	login   string
	hc      *http.Client
	limiter *rate.Limiter
	filter  FilterFunc
}

func NewDanbooru(host, username, password, salt string, filter FilterFunc) *Danbooru {
	return &Danbooru{
		host:    strings.TrimRight(host, "/"),
		login:   loginParams(username, password, salt),
		hc:      &http.Client{},
		limiter: newLimiter(),
		filter:  filter,
	}
}

// loginParams computes the credential pair once per session:
// password_hash = sha1 of the salt template with its %s slot filled
// by the password. Providers without a salt template fall back to
// hashing the bare password; so does a template with no %s slot at
// all, which would otherwise hash a mangled string.
func loginParams(username, password, salt string) string {
	if username == "" {
		return ""
	}
	if strings.Count(salt, "%s") != 1 {
		if salt != "" {
			log.Error().Str("salt", salt).Msg("Salt template must contain exactly one %s, hashing the bare password instead...")
		}
		salt = "%s"
	}
	digest := sha1.Sum([]byte(strings.Replace(salt, "%s", password, 1)))
	return fmt.Sprintf("&login=%s&password_hash=%x", url.QueryEscape(username), digest)
}

func (v *Danbooru) Host() string {
	return v.host
}

func (v *Danbooru) PostsPage(ctx context.Context, tags string, page, limit int) ([]Record, error) {
	target := fmt.Sprintf("%s%s?tags=%s&page=%d&limit=%d%s",
		v.host, danbooruPostAPI, url.QueryEscape(tags), page, limit, v.login)
	return v.getPosts(ctx, target)
}

func (v *Danbooru) PostsBefore(ctx context.Context, beforeID int, tags string, limit int) ([]Record, error) {
	target := fmt.Sprintf("%s%s?before_id=%d&tags=%s&limit=%d%s",
		v.host, danbooruPostAPI, beforeID, url.QueryEscape(tags), limit, v.login)
	return v.getPosts(ctx, target)
}

func (v *Danbooru) getPosts(ctx context.Context, target string) ([]Record, error) {
	log.Debug().Str("url", target).Msg("Fetching post listing...")

	body, err := fetchBody(ctx, v.hc, v.limiter, target)
	if err != nil {
		return nil, err
	}

	var raws []rawPost
	if err := jsoniter.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse listing JSON: %v", err)
	}

	records, err := normalizeBatch(raws)
	if err != nil {
		return nil, err
	}

	if v.filter != nil {
		records = v.filter(records)
	}

	return records, nil
}

type rawPool struct {
	ID        int                 `json:"id"`
	Name      string              `json:"name"`
	PostCount int                 `json:"post_count"`
	IsPublic  bool                `json:"is_public"`
	UpdatedAt jsoniter.RawMessage `json:"updated_at"`
}

func (v *Danbooru) PoolsPage(ctx context.Context, page int) ([]PoolRecord, error) {
	target := fmt.Sprintf("%s%s?page=%d%s", v.host, danbooruPoolAPI, page, v.login)
	log.Debug().Str("url", target).Msg("Fetching pool listing...")

	body, err := fetchBody(ctx, v.hc, v.limiter, target)
	if err != nil {
		return nil, err
	}

	var raws []rawPool
	if err := jsoniter.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse pool JSON: %v", err)
	}

	pools := make([]PoolRecord, 0, len(raws))
	for _, raw := range raws {
		pools = append(pools, PoolRecord{
			PoolID:    raw.ID,
			Name:      raw.Name,
			PostCount: raw.PostCount,
			IsPublic:  raw.IsPublic,
			UpdatedAt: parseRemoteTime(flattenTimestamp(raw.UpdatedAt)),
		})
	}

	return pools, nil
}
