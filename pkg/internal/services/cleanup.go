package services

import (
	"context"
	"fmt"

	"github.com/akina-dev/boorud/pkg/internal/database"
	"github.com/akina-dev/boorud/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type CleanupStats struct {
	Posts  int64 `json:"posts"`
	Images int64 `json:"images"`
	Tags   int64 `json:"tags"`
}

// DeleteByTags removes posts whose tags intersect the blacklist and
// do not intersect the whitelist (same override rule as the query
// filter), then prunes images and tags left without an owner.
func (s *Store) DeleteByTags(ctx context.Context, blacklist, whitelist []string) (CleanupStats, error) {
	var stats CleanupStats
	if len(blacklist) == 0 {
		return stats, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := func() *gorm.DB { return tx.Session(&gorm.Session{NewDB: true}) }

		blacklisted := sub().Table("post_tags").
			Select("post_tags.post_id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name IN ?", blacklist)

		del := sub().Where("id IN (?)", blacklisted)
		if len(whitelist) > 0 {
			whitelisted := sub().Table("post_tags").
				Select("post_tags.post_id").
				Joins("JOIN tags ON tags.id = post_tags.tag_id").
				Where("tags.name IN ?", whitelist)
			del = del.Where("id NOT IN (?)", whitelisted)
		}

		res := del.Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		stats.Posts = res.RowsAffected

		if err := tx.Exec("DELETE FROM post_tags WHERE post_id NOT IN (SELECT id FROM posts)").Error; err != nil {
			return err
		}

		var err error
		stats.Images, stats.Tags, err = pruneOrphans(tx)
		return err
	})
	if err != nil {
		return CleanupStats{}, fmt.Errorf("failed to delete posts by tags: %v", err)
	}

	return stats, nil
}

func pruneOrphans(tx *gorm.DB) (images, tags int64, err error) {
	sub := func() *gorm.DB { return tx.Session(&gorm.Session{NewDB: true}) }

	res := tx.Where("id NOT IN (?)", sub().Model(&models.Post{}).Select("image_id")).
		Delete(&models.Image{})
	if res.Error != nil {
		return 0, 0, res.Error
	}
	images = res.RowsAffected

	res = tx.Where("id NOT IN (SELECT tag_id FROM post_tags)").Delete(&models.Tag{})
	if res.Error != nil {
		return images, 0, res.Error
	}
	tags = res.RowsAffected

	return images, tags, nil
}

// DoAutoDatabaseCleanup prunes orphaned images and tags on a timer.
func DoAutoDatabaseCleanup() {
	var imageCount, tagCount int64

	if err := database.C.Transaction(func(tx *gorm.DB) error {
		var err error
		imageCount, tagCount, err = pruneOrphans(tx)
		return err
	}); err != nil {
		log.Error().Err(err).Msg("An error occurred when running auto database cleanup...")
		return
	}

	if imageCount > 0 || tagCount > 0 {
		log.Debug().Int64("images", imageCount).Int64("tags", tagCount).Msg("Pruned orphaned rows.")
	}
}
