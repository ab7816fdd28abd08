package services

import (
	"fmt"

	"github.com/akina-dev/boorud/pkg/internal/services/booru"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	DialectDanbooru = "danbooru"
	DialectGelbooru = "gelbooru"
)

// SourceConfig is one `[[sources]]` entry from the settings file.
type SourceConfig struct {
	ID        string   `mapstructure:"id" validate:"required"`
	Host      string   `mapstructure:"host" validate:"required,url"`
	Dialect   string   `mapstructure:"dialect" validate:"oneof=danbooru gelbooru"`
	FetchMode string   `mapstructure:"fetch_mode"`
	Tags      []string `mapstructure:"tags"`
	Blacklist []string `mapstructure:"blacklist"`
	Whitelist []string `mapstructure:"whitelist"`
	Limit     int      `mapstructure:"limit"`
	MaxTags   int      `mapstructure:"max_tags"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Salt      string   `mapstructure:"salt"`
	Pools     bool     `mapstructure:"pools"`
}

var sourceList []SourceConfig

// ReadSourceConfig loads and validates the configured sources.
// Invalid entries are dropped with an error log instead of failing
// the boot.
func ReadSourceConfig() {
	var loaded []SourceConfig
	if err := viper.UnmarshalKey("sources", &loaded); err != nil {
		log.Error().Err(err).Msg("Failed to load source config...")
		return
	}

	validate := validator.New()
	sourceList = lo.Filter(loaded, func(item SourceConfig, _ int) bool {
		if err := validate.Struct(item); err != nil {
			log.Error().Err(err).Str("id", item.ID).Msg("Dropping invalid source config...")
			return false
		}
		return true
	})

	log.Info().Int("count", len(sourceList)).Msg("Loaded source config!")
}

func Sources() []SourceConfig {
	return sourceList
}

func SourceByID(id string) (SourceConfig, bool) {
	return lo.Find(sourceList, func(item SourceConfig) bool {
		return item.ID == id
	})
}

func (c SourceConfig) NewClient(filter booru.FilterFunc) (booru.Client, error) {
	switch c.Dialect {
	case DialectDanbooru:
		return booru.NewDanbooru(c.Host, c.Username, c.Password, c.Salt, filter), nil
	case DialectGelbooru:
		return booru.NewGelbooru(c.Host, filter), nil
	default:
		return nil, fmt.Errorf("unsupported listing dialect: %s", c.Dialect)
	}
}

func (c SourceConfig) Mode() booru.FetchMode {
	switch c.FetchMode {
	case "page", "pid":
		return booru.FetchPage
	case "before_id":
		return booru.FetchBeforeID
	default:
		// The XML dialect only paginates by page.
		if c.Dialect == DialectGelbooru {
			return booru.FetchPage
		}
		return booru.FetchBeforeID
	}
}

// BuildQuery merges the source's configured terms with extras from
// the command line, returning the plain search tags and the parsed
// attribute query. Oversized tag lists are cut down: the JSON dialect
// rejects searches with too many tags.
func (c SourceConfig) BuildQuery(extraTags, extraBlacklist, extraWhitelist []string) ([]string, Query, error) {
	terms := lo.Uniq(append(append([]string{}, c.Tags...), extraTags...))

	query, err := ParseQuery(terms)
	if err != nil {
		return nil, query, err
	}
	query.Blacklist = lo.Uniq(append(append([]string{}, c.Blacklist...), extraBlacklist...))
	query.Whitelist = lo.Uniq(append(append([]string{}, c.Whitelist...), extraWhitelist...))

	tags := query.Tags
	maxTags := c.MaxTags
	if maxTags <= 0 {
		maxTags = 2
	}
	if len(tags) > maxTags {
		log.Warn().Int("max", maxTags).Msg("Using too many search tags, cutting down list...")
		tags = tags[:maxTags]
	}
	if len(tags) == 0 {
		tags = []string{""}
	}

	return tags, query, nil
}

func (c SourceConfig) BatchLimit() int {
	if c.Limit <= 0 {
		return 100
	}
	return c.Limit
}
