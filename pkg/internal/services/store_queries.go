package services

import (
	"context"
	"fmt"

	"github.com/akina-dev/boorud/pkg/internal/models"
	"gorm.io/gorm"
)

// QueryByTags returns posts carrying every tag in the list (AND
// semantics, matching imageboard search), newest first, deduplicated
// by image content hash, restricted to the board scope when one is
// set. The extra query narrows further by rating/dimension/ratio.
func (s *Store) QueryByTags(ctx context.Context, tags []string, limit int, extra *Query) ([]models.Post, error) {
	tx := s.db.WithContext(ctx).Model(&models.Post{}).
		Preload("Image").Preload("Tags").Preload("Board")

	if s.board != nil {
		tx = tx.Where("posts.board_id = ?", s.board.ID)
	}

	if len(tags) > 0 {
		tx = tx.
			Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name IN ?", tags).
			Having("COUNT(DISTINCT tags.name) = ?", len(tags))
	}

	tx = tx.Group("posts.image_id").Order("posts.post_id DESC")
	tx = applyStoredFilters(tx, extra)

	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var posts []models.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to query posts: %v", err)
	}
	return posts, nil
}

// DownloadItem is one row of the download queue: where to fetch from
// and what the bytes must hash to.
type DownloadItem struct {
	FileURL  string `json:"file_url"`
	MD5      string `json:"md5"`
	FileSize int64  `json:"file_size"`
	FileExt  string `json:"file_ext"`
	Host     string `json:"host"`
}

// ListDownloadable pages through stored posts newest-first, in board
// scope when one is set.
func (s *Store) ListDownloadable(ctx context.Context, limit, offset int) ([]DownloadItem, error) {
	tx := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("posts.file_url, images.md5, images.file_size, images.file_ext, boards.host").
		Joins("JOIN images ON images.id = posts.image_id").
		Joins("JOIN boards ON boards.id = posts.board_id").
		Order("posts.post_id DESC")

	if s.board != nil {
		tx = tx.Where("posts.board_id = ?", s.board.ID)
	}

	var items []DownloadItem
	if err := tx.Limit(limit).Offset(offset).Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list downloadable posts: %v", err)
	}
	return items, nil
}

// ListBoards returns every board the store has seen.
func (s *Store) ListBoards(ctx context.Context) ([]models.Board, error) {
	var boards []models.Board
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&boards).Error; err != nil {
		return nil, fmt.Errorf("failed to list boards: %v", err)
	}
	return boards, nil
}

// PostByMD5 resolves the post backing a downloaded file.
func (s *Store) PostByMD5(ctx context.Context, md5 string) (models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Tags").Preload("Image").Preload("Board").
		Joins("JOIN images ON images.id = posts.image_id").
		Where("images.md5 = ?", md5).
		First(&post).Error
	return post, err
}

func applyStoredFilters(tx *gorm.DB, q *Query) *gorm.DB {
	if q == nil {
		return tx
	}

	joined := false
	join := func() {
		if !joined {
			tx = tx.Joins("JOIN images ON images.id = posts.image_id")
			joined = true
		}
	}

	if q.Rating != "" {
		tx = tx.Where("posts.rating = ?", q.Rating)
	}
	if q.Width != nil {
		join()
		tx = tx.Where(fmt.Sprintf("images.width %c ?", q.Width.Op), q.Width.Value)
	}
	if q.Height != nil {
		join()
		tx = tx.Where(fmt.Sprintf("images.height %c ?", q.Height.Op), q.Height.Value)
	}
	if q.Ratio != nil {
		join()
		ratio := float64(q.Ratio.Width) / float64(q.Ratio.Height)
		tx = tx.Where("CAST(images.width AS REAL) / images.height = ?", ratio)
	}

	return tx
}
