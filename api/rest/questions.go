package rest

import (
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"dsdungeon/game/question"
	mw "dsdungeon/middleware"
	"dsdungeon/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuestionHandler serves the question catalog. by-room-chest and
// random are optionally authenticated: logged-in users never see a
// question they already answered.
type QuestionHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewQuestionHandler(db *gorm.DB, logger *zap.Logger) *QuestionHandler {
	return &QuestionHandler{db: db, logger: logger}
}

// SeedCatalog loads the embedded question bank into the questions
// table when it is empty. Idempotent across restarts.
func (h *QuestionHandler) SeedCatalog(bank *question.Bank) error {
	var count int64
	if err := h.db.Model(&model.Question{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	rows := make([]model.Question, 0, bank.Len())
	for _, q := range bank.All() {
		rows = append(rows, model.Question{
			ID:            int64(q.ID),
			QuestionText:  q.QuestionText,
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			CorrectAnswer: q.CorrectAnswer,
			Difficulty:    q.Difficulty,
			Topic:         q.Topic,
			Explanation:   q.Explanation,
		})
	}
	if err := h.db.CreateInBatches(rows, 100).Error; err != nil {
		return err
	}
	h.logger.Info("question catalog seeded", zap.Int("questions", len(rows)))
	return nil
}

func questionResponse(q *model.Question) gin.H {
	return gin.H{
		"id":             q.ID,
		"question_text":  q.QuestionText,
		"option_a":       q.OptionA,
		"option_b":       q.OptionB,
		"option_c":       q.OptionC,
		"option_d":       q.OptionD,
		"correct_answer": q.CorrectAnswer,
		"difficulty":     q.Difficulty,
		"topic":          q.Topic,
		"explanation":    q.Explanation,
	}
}

// answeredIDs returns the ids the user has already answered. Empty for
// anonymous callers.
func (h *QuestionHandler) answeredIDs(userID int64) []int {
	if userID == 0 {
		return nil
	}
	var ids []int
	h.db.Model(&model.AnsweredQuestion{}).Where("user_id = ?", userID).Pluck("question_id", &ids)
	return ids
}

// pickQuestion selects a random question of the wanted difficulty,
// excluding the given ids, falling back to any difficulty. Returns nil
// when the whole catalog is exhausted for this user.
func (h *QuestionHandler) pickQuestion(difficulty string, exclude []int) *model.Question {
	var candidates []model.Question

	q := h.db.Where("difficulty = ?", difficulty)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	q.Find(&candidates)

	if len(candidates) == 0 {
		fallback := h.db.Model(&model.Question{})
		if len(exclude) > 0 {
			fallback = fallback.Where("id NOT IN ?", exclude)
		}
		fallback.Find(&candidates)
	}
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[rand.Intn(len(candidates))]
}

// ByRoomChest handles GET /api/questions/by-room-chest?room=&chest=.
func (h *QuestionHandler) ByRoomChest(c *gin.Context) {
	room, err := strconv.Atoi(c.Query("room"))
	if err != nil || room < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
		return
	}
	chest, err := strconv.Atoi(c.Query("chest"))
	if err != nil || chest < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chest"})
		return
	}

	difficulty := question.DifficultyFor(room, chest)
	q := h.pickQuestion(difficulty, h.answeredIDs(mw.GetUserID(c)))
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no questions available"})
		return
	}
	c.JSON(http.StatusOK, questionResponse(q))
}

// Random handles GET /api/questions/random?difficulty=&exclude_ids=.
// Malformed entries in exclude_ids are ignored.
func (h *QuestionHandler) Random(c *gin.Context) {
	difficulty := c.Query("difficulty")
	if difficulty == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty required"})
		return
	}

	exclude := h.answeredIDs(mw.GetUserID(c))
	for _, part := range strings.Split(c.Query("exclude_ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.Atoi(part); err == nil {
			exclude = append(exclude, id)
		}
	}

	q := h.pickQuestion(difficulty, exclude)
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no questions available"})
		return
	}
	c.JSON(http.StatusOK, questionResponse(q))
}

type answerRequest struct {
	QuestionID        int  `json:"question_id" binding:"required"`
	AnsweredCorrectly bool `json:"answered_correctly"`
	RoomNumber        *int `json:"room_number"`
}

func answeredResponse(a *model.AnsweredQuestion) gin.H {
	return gin.H{
		"id":                 a.ID,
		"question_id":        a.QuestionID,
		"answered_correctly": a.AnsweredCorrectly,
		"room_number":        a.RoomNumber,
		"answered_at":        a.AnsweredAt,
	}
}

// RecordAnswered handles POST /api/questions/answered. Upsert keyed on
// (user, question): re-answering updates correctness in place.
func (h *QuestionHandler) RecordAnswered(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	h.db.Model(&model.Question{}).Where("id = ?", req.QuestionID).Count(&count)
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
		return
	}

	userID := mw.GetUserID(c)
	row := model.AnsweredQuestion{
		UserID:            userID,
		QuestionID:        int64(req.QuestionID),
		AnsweredCorrectly: req.AnsweredCorrectly,
		RoomNumber:        req.RoomNumber,
	}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answered_correctly", "room_number"}),
	}).Create(&row).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var saved model.AnsweredQuestion
	if err := h.db.Where("user_id = ? AND question_id = ?", userID, req.QuestionID).First(&saved).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, answeredResponse(&saved))
}

// ListAnswered handles GET /api/questions/answered.
func (h *QuestionHandler) ListAnswered(c *gin.Context) {
	var rows []model.AnsweredQuestion
	if err := h.db.Where("user_id = ?", mw.GetUserID(c)).Find(&rows).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, answeredResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Stats handles GET /api/questions/stats: catalog totals by
// difficulty, plus the caller's answered/remaining when authenticated.
func (h *QuestionHandler) Stats(c *gin.Context) {
	var total int64
	h.db.Model(&model.Question{}).Count(&total)

	byDifficulty := make(map[string]int64)
	for _, d := range []string{
		question.DifficultyEasy, question.DifficultyMedium, question.DifficultyHard,
		question.DifficultyVeryHard, question.DifficultyExpert,
	} {
		var n int64
		h.db.Model(&model.Question{}).Where("difficulty = ?", d).Count(&n)
		byDifficulty[d] = n
	}

	out := gin.H{
		"total_questions": total,
		"by_difficulty":   byDifficulty,
	}
	if userID := mw.GetUserID(c); userID != 0 {
		var answered int64
		h.db.Model(&model.AnsweredQuestion{}).Where("user_id = ?", userID).Count(&answered)
		out["answered"] = answered
		out["remaining"] = total - answered
	}
	c.JSON(http.StatusOK, out)
}
