package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	mw "dsdungeon/middleware"
	"dsdungeon/model"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProgressHandler handles the save-game REST endpoints. One row per
// user; brightness_level is the wire name of health.
type ProgressHandler struct {
	db *gorm.DB
}

func NewProgressHandler(db *gorm.DB) *ProgressHandler {
	return &ProgressHandler{db: db}
}

type progressUpdateRequest struct {
	CurrentRoom     *int            `json:"current_room"`
	BrightnessLevel *int            `json:"brightness_level"`
	TotalCorrect    *int            `json:"total_correct"`
	TotalIncorrect  *int            `json:"total_incorrect"`
	Score           *int            `json:"score"`
	GameCompleted   *bool           `json:"game_completed"`
	ChestStates     json.RawMessage `json:"chest_states"`
}

func progressResponse(p *model.GameProgress) gin.H {
	chests := "[]"
	if len(p.ChestStates) > 0 {
		chests = string(p.ChestStates)
	}
	return gin.H{
		"id":               p.ID,
		"user_id":          p.UserID,
		"current_room":     p.CurrentRoom,
		"brightness_level": p.BrightnessLevel,
		"total_correct":    p.TotalCorrect,
		"total_incorrect":  p.TotalIncorrect,
		"score":            p.Score,
		"game_completed":   p.GameCompleted,
		"chest_states":     chests,
		"last_saved":       p.LastSaved,
	}
}

// Get handles GET /api/progress. A missing row is created on the fly
// so new players always resolve to a fresh room-1 save.
func (h *ProgressHandler) Get(c *gin.Context) {
	userID := mw.GetUserID(c)

	var p model.GameProgress
	err := h.db.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = freshProgress(userID)
		if err := h.db.Create(&p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, progressResponse(&p))
}

// Create handles POST /api/progress: reset to a new game. The old row
// and the user's answered questions both go.
func (h *ProgressHandler) Create(c *gin.Context) {
	userID := mw.GetUserID(c)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.GameProgress{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.AnsweredQuestion{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	p := freshProgress(userID)
	if err := h.db.Create(&p).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, progressResponse(&p))
}

// Update handles PUT /api/progress: upsert, last write wins. Absent
// fields keep their stored values.
func (h *ProgressHandler) Update(c *gin.Context) {
	userID := mw.GetUserID(c)

	var req progressUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var p model.GameProgress
	err := h.db.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = freshProgress(userID)
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if req.CurrentRoom != nil {
		p.CurrentRoom = *req.CurrentRoom
	}
	if req.BrightnessLevel != nil {
		p.BrightnessLevel = *req.BrightnessLevel
	}
	if req.TotalCorrect != nil {
		p.TotalCorrect = *req.TotalCorrect
	}
	if req.TotalIncorrect != nil {
		p.TotalIncorrect = *req.TotalIncorrect
	}
	if req.Score != nil {
		p.Score = *req.Score
	}
	if req.GameCompleted != nil {
		p.GameCompleted = *req.GameCompleted
	}
	if req.ChestStates != nil {
		p.ChestStates = datatypes.JSON(req.ChestStates)
	}

	if err := h.db.Save(&p).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, progressResponse(&p))
}

// Delete handles DELETE /api/progress: remove the save and the user's
// answer history.
func (h *ProgressHandler) Delete(c *gin.Context) {
	userID := mw.GetUserID(c)

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.GameProgress{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.AnsweredQuestion{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "progress reset"})
}

func freshProgress(userID int64) model.GameProgress {
	return model.GameProgress{
		UserID:          userID,
		CurrentRoom:     1,
		BrightnessLevel: 100,
		ChestStates:     datatypes.JSON("[]"),
	}
}
