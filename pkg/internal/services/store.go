package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/akina-dev/boorud/pkg/internal/models"
	"github.com/akina-dev/boorud/pkg/internal/services/booru"
	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoBoardScope is returned by writes that need to know which board
// the batch belongs to.
var ErrNoBoardScope = errors.New("store has no board scope set")

// Store is the metadata persistence layer. The board scope is carried
// by the handle itself: WithBoard returns a derived handle instead of
// mutating shared state, so concurrent sources never race on it.
type Store struct {
	db     *gorm.DB
	board  *models.Board
	tagIDs *cache.Cache[uint]
}

func NewStore(db *gorm.DB) (*Store, error) {
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tag cache: %v", err)
	}

	return &Store{
		db:     db,
		tagIDs: cache.New[uint](ristretto_store.NewRistretto(rc)),
	}, nil
}

// WithBoard get-or-creates the Board row and returns a handle scoped
// to it. The original host is never corrected implicitly: the same
// (host, alias) pair maps to the same row forever.
func (s *Store) WithBoard(host, alias string) (*Store, error) {
	var board models.Board
	if err := s.db.Where(models.Board{Host: host, Alias: alias}).FirstOrCreate(&board).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve board: %v", err)
	}

	clone := *s
	clone.board = &board
	return &clone, nil
}

// AllBoards returns a handle with the scope cleared; reads span every
// board, writes are rejected.
func (s *Store) AllBoards() *Store {
	clone := *s
	clone.board = nil
	return &clone
}

func (s *Store) Board() *models.Board {
	return s.board
}

type UpsertStats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	NewImages int `json:"new_images"`
	NewTags   int `json:"new_tags"`
}

// UpsertPosts commits one normalized batch atomically. Known posts
// get their mutable columns refreshed and their tag associations
// diffed; unknown posts are inserted with their image resolved first.
// Records without a storable file reference are skipped.
func (s *Store) UpsertPosts(ctx context.Context, batch []booru.Record) (UpsertStats, error) {
	var stats UpsertStats
	if s.board == nil {
		return stats, ErrNoBoardScope
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range batch {
			if !rec.Storable() {
				stats.Skipped++
				continue
			}

			img, createdImg, err := s.resolveImage(tx, rec)
			if err != nil {
				return err
			}
			if createdImg {
				stats.NewImages++
			}

			tags, createdTags, err := s.resolveTags(ctx, tx, rec.Tags)
			if err != nil {
				return err
			}
			stats.NewTags += createdTags

			var post models.Post
			err = tx.Preload("Tags").
				Where("post_id = ? AND board_id = ?", rec.PostID, s.board.ID).
				First(&post).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				post = models.Post{PostID: rec.PostID, BoardID: s.board.ID}
				applyMutable(&post, rec, img.ID)
				post.Tags = tags
				if err := tx.Create(&post).Error; err != nil {
					return err
				}
				stats.Inserted++
			case err != nil:
				return err
			default:
				applyMutable(&post, rec, img.ID)
				if err := tx.Omit(clause.Associations).Save(&post).Error; err != nil {
					return err
				}
				if err := diffTags(tx, &post, tags); err != nil {
					return err
				}
				stats.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertStats{}, fmt.Errorf("failed to commit batch: %w", err)
	}

	return stats, nil
}

func (s *Store) resolveImage(tx *gorm.DB, rec booru.Record) (models.Image, bool, error) {
	var img models.Image
	res := tx.Where(models.Image{MD5: rec.MD5}).
		Attrs(models.Image{
			Width:    rec.Width,
			Height:   rec.Height,
			FileExt:  NormalizeExt(path.Ext(rec.FileURL)),
			FileSize: rec.FileSize,
		}).
		FirstOrCreate(&img)
	if res.Error != nil {
		return img, false, res.Error
	}
	return img, res.RowsAffected > 0, nil
}

func (s *Store) resolveTags(ctx context.Context, tx *gorm.DB, names []string) ([]models.Tag, int, error) {
	var created int
	tags := make([]models.Tag, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if id, err := s.tagIDs.Get(ctx, "tag#"+name); err == nil && id > 0 {
			tags = append(tags, models.Tag{BaseModel: models.BaseModel{ID: id}, Name: name})
			continue
		}

		var tag models.Tag
		res := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag)
		if res.Error != nil {
			return nil, created, res.Error
		}
		if res.RowsAffected > 0 {
			created++
		}
		_ = s.tagIDs.Set(ctx, "tag#"+name, tag.ID, store.WithCost(1))
		tags = append(tags, tag)
	}

	return tags, created, nil
}

// diffTags reconciles the association instead of replacing it
// wholesale, so unchanged links keep their rows.
func diffTags(tx *gorm.DB, post *models.Post, want []models.Tag) error {
	have := lo.SliceToMap(post.Tags, func(t models.Tag) (string, bool) { return t.Name, true })
	wanted := lo.SliceToMap(want, func(t models.Tag) (string, bool) { return t.Name, true })

	toAdd := lo.Filter(want, func(t models.Tag, _ int) bool { return !have[t.Name] })
	toRemove := lo.Filter(post.Tags, func(t models.Tag, _ int) bool { return !wanted[t.Name] })

	assoc := tx.Model(post).Omit("Tags.*").Association("Tags")
	if len(toAdd) > 0 {
		if err := assoc.Append(&toAdd); err != nil {
			return err
		}
	}
	if len(toRemove) > 0 {
		if err := assoc.Delete(&toRemove); err != nil {
			return err
		}
	}
	return nil
}

func applyMutable(post *models.Post, rec booru.Record, imageID uint) {
	post.ImageID = imageID
	post.FileURL = rec.FileURL
	post.Author = rec.Author
	post.CreatorID = rec.CreatorID
	post.Rating = rec.Rating
	post.Score = rec.Score
	post.Source = rec.Source
	post.ParentID = rec.ParentID
	post.Status = rec.Status
	post.Change = rec.Change
	post.PostedAt = rec.CreatedAt
	post.SampleURL = rec.SampleURL
	post.SampleWidth = rec.SampleWidth
	post.SampleHeight = rec.SampleHeight
	post.PreviewURL = rec.PreviewURL
	post.PreviewWidth = rec.PreviewWidth
	post.PreviewHeight = rec.PreviewHeight
	post.HasNotes = rec.HasNotes
	post.HasComments = rec.HasComments
	post.HasChildren = rec.HasChildren
}

// NormalizeExt lowercases a file extension and collapses the ".jpeg"
// spelling into ".jpg".
func NormalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return ext
}
