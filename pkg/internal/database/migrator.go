package database

import (
	"github.com/akina-dev/boorud/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.Board{},
	&models.Image{},
	&models.Tag{},
	&models.Post{},
	&models.Pool{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	return nil
}
