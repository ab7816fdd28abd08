package models

// Board is one remote imageboard instance. The alias is the short
// name used in configuration and on the command line; the host is the
// base URL every request and relative file link resolves against.
type Board struct {
	BaseModel

	Host  string `json:"host" gorm:"uniqueIndex:idx_board_identity"`
	Alias string `json:"alias" gorm:"uniqueIndex:idx_board_identity"`
}
