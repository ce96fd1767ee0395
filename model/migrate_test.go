package model_test

import (
	"testing"

	"dsdungeon/model"
	"dsdungeon/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// User
	u := &model.User{Username: "test_user", Email: "test@example.com", PasswordHash: "hash"}
	require.NoError(t, db.Create(u).Error)
	assert.Greater(t, u.ID, int64(0))

	var found model.User
	require.NoError(t, db.First(&found, u.ID).Error)
	assert.Equal(t, "test_user", found.Username)

	// GameProgress
	prog := &model.GameProgress{
		UserID:          u.ID,
		CurrentRoom:     3,
		BrightnessLevel: 60,
		Score:           1200,
		ChestStates:     datatypes.JSON([]byte(`[{"room":1,"chest":1}]`)),
	}
	require.NoError(t, db.Create(prog).Error)
	assert.Greater(t, prog.ID, int64(0))

	// Question
	q := &model.Question{
		ID:            1,
		QuestionText:  "What does the mean of a dataset represent?",
		OptionA:       "The most frequent value",
		OptionB:       "The middle value when sorted",
		OptionC:       "The average of all values",
		OptionD:       "The range of values",
		CorrectAnswer: "C",
		Difficulty:    "easy",
		Topic:         "Statistics",
	}
	require.NoError(t, db.Create(q).Error)

	// AnsweredQuestion
	room := 1
	aq := &model.AnsweredQuestion{UserID: u.ID, QuestionID: q.ID, AnsweredCorrectly: true, RoomNumber: &room}
	require.NoError(t, db.Create(aq).Error)

	// (user, question) pairs are unique
	dup := &model.AnsweredQuestion{UserID: u.ID, QuestionID: q.ID, AnsweredCorrectly: false}
	assert.Error(t, db.Create(dup).Error)
}

func TestGameProgress_OneRowPerUser(t *testing.T) {
	db := testutil.SetupTestDB(t)

	u := &model.User{Username: "solo", Email: "solo@example.com", PasswordHash: "hash"}
	require.NoError(t, db.Create(u).Error)

	require.NoError(t, db.Create(&model.GameProgress{UserID: u.ID}).Error)
	assert.Error(t, db.Create(&model.GameProgress{UserID: u.ID}).Error)
}
