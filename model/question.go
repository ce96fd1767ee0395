package model

import "time"

// Question is one multiple-choice entry in the question bank.
// Rows are seeded from the embedded catalog and never mutated afterwards.
type Question struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	QuestionText  string `gorm:"type:text;not null" json:"question_text"`
	OptionA       string `gorm:"type:text;not null" json:"option_a"`
	OptionB       string `gorm:"type:text;not null" json:"option_b"`
	OptionC       string `gorm:"type:text;not null" json:"option_c"`
	OptionD       string `gorm:"type:text;not null" json:"option_d"`
	CorrectAnswer string `gorm:"size:1;not null" json:"correct_answer"`
	Difficulty    string `gorm:"size:20;not null;index" json:"difficulty"`
	Topic         string `gorm:"size:50;not null;index" json:"topic"`
	Explanation   string `gorm:"type:text" json:"explanation"`
}

// AnsweredQuestion records that a user has seen a question, so it is
// never served to them again. One row per (user, question).
type AnsweredQuestion struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64     `gorm:"index:idx_user_question,unique;not null" json:"user_id"`
	QuestionID        int64     `gorm:"index:idx_user_question,unique;not null" json:"question_id"`
	AnsweredCorrectly bool      `gorm:"not null" json:"answered_correctly"`
	RoomNumber        *int      `json:"room_number"`
	AnsweredAt        time.Time `gorm:"autoCreateTime" json:"answered_at"`
}
