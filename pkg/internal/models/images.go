package models

// Image is the content-addressed side of a post: one row per unique
// md5, shared by every post that links the same file across boards.
type Image struct {
	BaseModel

	MD5      string `json:"md5" gorm:"uniqueIndex;size:32"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileExt  string `json:"file_ext" gorm:"size:8"`
	FileSize int64  `json:"file_size"`
}
