package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"dsdungeon/cache"
	"dsdungeon/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// leaderboardKey is the score-sorted set of user ids.
const leaderboardKey = "leaderboard:score"

// LeaderboardHandler serves the public top-players board. Reads hit
// the cache ZSet; the DB is the source of truth and rebuilds the ZSet
// when it is cold.
type LeaderboardHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	size   int
	logger *zap.Logger
}

func NewLeaderboardHandler(db *gorm.DB, c cache.Cache, size int, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{db: db, cache: c, size: size, logger: logger}
}

type boardRow struct {
	UserID        int64
	Username      string
	Score         int
	CurrentRoom   int
	GameCompleted bool
}

func (h *LeaderboardHandler) queryTop(limit int) ([]boardRow, error) {
	var rows []boardRow
	err := h.db.Model(&model.GameProgress{}).
		Select("game_progress.user_id, users.username, game_progress.score, game_progress.current_room, game_progress.game_completed").
		Joins("JOIN users ON users.id = game_progress.user_id").
		Order("game_progress.score DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func roomsCompleted(r boardRow) int {
	if r.GameCompleted {
		return 10
	}
	if r.CurrentRoom < 1 {
		return 0
	}
	return r.CurrentRoom - 1
}

func entryJSON(rank int, r boardRow) gin.H {
	return gin.H{
		"rank":            rank,
		"username":        r.Username,
		"score":           r.Score,
		"rooms_completed": roomsCompleted(r),
		"game_completed":  r.GameCompleted,
	}
}

// Get handles GET /api/leaderboard. Public.
func (h *LeaderboardHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if entries, ok := h.fromCache(ctx); ok {
		c.JSON(http.StatusOK, entries)
		return
	}

	rows, err := h.queryTop(h.size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	// Warm the ZSet for the next reader.
	for _, r := range rows {
		_ = h.cache.ZAdd(ctx, leaderboardKey, float64(r.Score), strconv.FormatInt(r.UserID, 10))
	}

	entries := make([]gin.H, 0, len(rows))
	for i, r := range rows {
		entries = append(entries, entryJSON(i+1, r))
	}
	c.JSON(http.StatusOK, entries)
}

// fromCache assembles the board from the ZSet. Returns false when the
// set is cold or any row fails to resolve.
func (h *LeaderboardHandler) fromCache(ctx context.Context) ([]gin.H, bool) {
	members, err := h.cache.ZRevRange(ctx, leaderboardKey, 0, int64(h.size-1))
	if err != nil || len(members) == 0 {
		return nil, false
	}

	entries := make([]gin.H, 0, len(members))
	for i, member := range members {
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, false
		}
		var row boardRow
		err = h.db.Model(&model.GameProgress{}).
			Select("game_progress.user_id, users.username, game_progress.score, game_progress.current_room, game_progress.game_completed").
			Joins("JOIN users ON users.id = game_progress.user_id").
			Where("game_progress.user_id = ?", userID).
			Scan(&row).Error
		if err != nil || row.Username == "" {
			return nil, false
		}
		entries = append(entries, entryJSON(i+1, row))
	}
	return entries, true
}

// Refresh rebuilds the ZSet from the DB. The scheduler runs it
// periodically so cached ranks track recent saves.
func (h *LeaderboardHandler) Refresh(ctx context.Context) {
	rows, err := h.queryTop(h.size)
	if err != nil {
		h.logger.Warn("leaderboard refresh query failed", zap.Error(err))
		return
	}
	for _, r := range rows {
		if err := h.cache.ZAdd(ctx, leaderboardKey, float64(r.Score), strconv.FormatInt(r.UserID, 10)); err != nil {
			h.logger.Warn("leaderboard refresh zadd failed", zap.Error(err))
			return
		}
	}
}
