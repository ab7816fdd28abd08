package booru

import (
	"time"

	"github.com/akina-dev/boorud/pkg/internal/models"
	"github.com/samber/lo"
)

// Record is the canonical shape of one remote post after
// normalization. Every dialect decodes into this before anything
// downstream sees the batch.
type Record struct {
	PostID    int
	Tags      []string
	Width     int
	Height    int
	Rating    string
	Score     int
	Author    string
	CreatorID *int
	Source    string
	MD5       string
	FileURL   string
	FileSize  int64
	ParentID  *int
	Status    string
	Change    int

	// CreatedAt is the remote timestamp as a string; structured epoch
	// encodings are flattened during normalization.
	CreatedAt string

	SampleURL     string
	SampleWidth   int
	SampleHeight  int
	PreviewURL    string
	PreviewWidth  int
	PreviewHeight int

	HasNotes    models.TriState
	HasComments models.TriState
	HasChildren models.TriState
}

// Storable reports whether the record carries enough to attach an
// Image row. Unstorable records stay in the batch but are skipped by
// the store.
func (r Record) Storable() bool {
	return r.FileURL != "" && r.MD5 != ""
}

func (r Record) HasAnyTag(names []string) bool {
	return len(lo.Intersect(r.Tags, names)) > 0
}

// PoolRecord is one remote pool listing entry.
type PoolRecord struct {
	PoolID    int
	Name      string
	PostCount int
	IsPublic  bool
	UpdatedAt time.Time
}
