package models

// Tag names are global: shared across boards and posts, created lazily
// on first sighting, case-sensitive and trimmed before storage.
type Tag struct {
	BaseModel

	Name  string `json:"name" gorm:"uniqueIndex;not null"`
	Posts []Post `json:"posts" gorm:"many2many:post_tags"`
}
