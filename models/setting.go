package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Setting is a key/value row backing the dashboard settings page.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:100;uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

func GetSetting(db *gorm.DB, key string) (string, bool, error) {
	var s Setting
	err := db.Where("setting_key = ?", key).Take(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return s.Value, true, nil
}

func PutSetting(db *gorm.DB, key string, value string) error {
	var s Setting
	err := db.Where("setting_key = ?", key).Take(&s).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return db.Create(&Setting{Key: key, Value: value}).Error
	}
	return db.Model(&s).Update("value", value).Error
}
