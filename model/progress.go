package model

import (
	"time"

	"gorm.io/datatypes"
)

// GameProgress is a user's save-game: one row per user, replaced wholesale
// on every save (last full snapshot wins).
//
// BrightnessLevel is the wire name for health (0..100); the dungeon gets
// darker as the player loses it.
type GameProgress struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64          `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentRoom     int            `gorm:"default:1" json:"current_room"`
	BrightnessLevel int            `gorm:"default:100" json:"brightness_level"`
	Score           int            `gorm:"default:0" json:"score"`
	TotalCorrect    int            `gorm:"default:0" json:"total_correct"`
	TotalIncorrect  int            `gorm:"default:0" json:"total_incorrect"`
	GameCompleted   bool           `gorm:"default:false" json:"game_completed"`
	ChestStates     datatypes.JSON `json:"chest_states"` // [{"room":1,"chest":2}, ...]
	LastSaved       time.Time      `gorm:"autoUpdateTime" json:"last_saved"`
}

func (GameProgress) TableName() string { return "game_progress" }
