package models

import "time"

// Pool is a named remote collection of posts from one board. The
// remote update timestamp makes "unchanged since last sync" detection
// a single comparison.
type Pool struct {
	BaseModel

	PoolID  int   `json:"pool_id" gorm:"uniqueIndex:idx_pool_identity"`
	BoardID uint  `json:"board_id" gorm:"uniqueIndex:idx_pool_identity"`
	Board   Board `json:"board"`

	Name            string    `json:"name"`
	IsPublic        bool      `json:"is_public"`
	PostCount       int       `json:"post_count"`
	RemoteUpdatedAt time.Time `json:"remote_updated_at"`
}
