package models

const (
	RatingSafe         = "s"
	RatingQuestionable = "q"
	RatingExplicit     = "e"
)

// TriState is a boolean the remote may simply not report.
type TriState int16

const (
	TriUnknown TriState = -1
	TriFalse   TriState = 0
	TriTrue    TriState = 1
)

// Post is the metadata of one remote submission. (PostID, BoardID) is
// the idempotency key of the sync loop: re-fetching a batch updates the
// mutable columns instead of growing the table.
type Post struct {
	BaseModel

	PostID  int   `json:"post_id" gorm:"uniqueIndex:idx_post_identity"`
	BoardID uint  `json:"board_id" gorm:"uniqueIndex:idx_post_identity"`
	Board   Board `json:"board"`

	ImageID uint  `json:"image_id" gorm:"index"`
	Image   Image `json:"image"`

	Tags []Tag `json:"tags" gorm:"many2many:post_tags"`

	FileURL   string `json:"file_url"`
	Author    string `json:"author"`
	CreatorID *int   `json:"creator_id"`
	Rating    string `json:"rating" gorm:"size:1"`
	Score     int    `json:"score"`
	Source    string `json:"source"`
	ParentID  *int   `json:"parent_id"`
	Status    string `json:"status"`
	Change    int    `json:"change"`

	// PostedAt keeps the remote timestamp verbatim; upstreams encode it
	// inconsistently so it stays a string.
	PostedAt string `json:"posted_at"`

	SampleURL     string `json:"sample_url"`
	SampleWidth   int    `json:"sample_width"`
	SampleHeight  int    `json:"sample_height"`
	PreviewURL    string `json:"preview_url"`
	PreviewWidth  int    `json:"preview_width"`
	PreviewHeight int    `json:"preview_height"`

	HasNotes    TriState `json:"has_notes" gorm:"default:-1"`
	HasComments TriState `json:"has_comments" gorm:"default:-1"`
	HasChildren TriState `json:"has_children" gorm:"default:-1"`
}
