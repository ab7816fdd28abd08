package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/akina-dev/boorud/pkg/internal/models"
	"github.com/akina-dev/boorud/pkg/internal/services/booru"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type PoolStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`

	// UpToDate is set once a known pool arrives whose remote update
	// timestamp has not moved; the listing is sorted by recency, so
	// everything past it is unchanged too.
	UpToDate bool `json:"up_to_date"`
}

// SavePools upserts one page of the remote pool listing.
func (s *Store) SavePools(ctx context.Context, pools []booru.PoolRecord) (PoolStats, error) {
	var stats PoolStats
	if s.board == nil {
		return stats, ErrNoBoardScope
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range pools {
			var pool models.Pool
			err := tx.Where("pool_id = ? AND board_id = ?", rec.PoolID, s.board.ID).
				First(&pool).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				pool = models.Pool{
					PoolID:          rec.PoolID,
					BoardID:         s.board.ID,
					Name:            rec.Name,
					IsPublic:        rec.IsPublic,
					PostCount:       rec.PostCount,
					RemoteUpdatedAt: rec.UpdatedAt,
				}
				if err := tx.Create(&pool).Error; err != nil {
					return err
				}
				stats.Created++
			case err != nil:
				return err
			default:
				if !rec.UpdatedAt.After(pool.RemoteUpdatedAt) {
					stats.UpToDate = true
					continue
				}
				pool.Name = rec.Name
				pool.IsPublic = rec.IsPublic
				pool.PostCount = rec.PostCount
				pool.RemoteUpdatedAt = rec.UpdatedAt
				if err := tx.Save(&pool).Error; err != nil {
					return err
				}
				stats.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return PoolStats{}, fmt.Errorf("failed to save pools: %v", err)
	}

	return stats, nil
}

// SyncPools walks the remote pool listing page by page until a page
// comes back empty or fully up-to-date.
func SyncPools(ctx context.Context, lister booru.PoolLister, store *Store) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Debug().Int("page", page).Msg("Fetching pools page...")
		pools, err := lister.PoolsPage(ctx, page)
		if err != nil {
			return err
		}
		if len(pools) == 0 {
			log.Debug().Msg("No pools returned.")
			return nil
		}

		stats, err := store.SavePools(ctx, pools)
		if err != nil {
			return err
		}
		log.Debug().Int("created", stats.Created).Int("updated", stats.Updated).Msg("Committed pool page...")
		if stats.UpToDate {
			log.Debug().Msg("Pool list up-to-date.")
			return nil
		}
	}
}
