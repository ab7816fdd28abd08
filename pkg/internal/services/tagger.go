package services

import (
	"context"
	"os"

	"github.com/akina-dev/boorud/pkg/internal/models"
	"github.com/rs/zerolog/log"
)

// Tagger is the bridge to a desktop semantic-data service: given a
// downloaded file and its post, it attaches the post's tags to the
// file. The core only depends on this one call.
type Tagger interface {
	UpdateTags(path string, post models.Post) error
}

// LogTagger is the default bridge; it only reports what a real one
// would tag.
type LogTagger struct{}

func (LogTagger) UpdateTags(path string, post models.Post) error {
	log.Debug().Str("file", path).Int("post_id", post.PostID).Int("tags", len(post.Tags)).Msg("Would update semantic tags...")
	return nil
}

// UpdateDirectoryTags runs the bridge over every downloaded file the
// store knows about.
func UpdateDirectoryTags(ctx context.Context, store *Store, dl *Downloader, tagger Tagger) error {
	const pageSize = 200

	for offset := 0; ; offset += pageSize {
		items, err := store.ListDownloadable(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}

			path := dl.LocalPath(item)
			if _, err := os.Stat(path); err != nil {
				continue
			}

			post, err := store.PostByMD5(ctx, item.MD5)
			if err != nil {
				continue
			}
			if err := tagger.UpdateTags(path, post); err != nil {
				log.Warn().Err(err).Str("file", path).Msg("Failed to update semantic tags...")
			}
		}
	}
}
