package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Proposal{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Form{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Version{}); err != nil {
		return err
	}

	return nil
}
