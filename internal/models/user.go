package models

import (
	"time"
)

// MaxRank верхняя граница ранга
const MaxRank = 10

// User представляет пользователя сети (человека или networker-а)
type User struct {
	ID        int64     `gorm:"primaryKey"`
	Username  string    `gorm:"size:64;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Profile содержит игровое состояние пользователя
type Profile struct {
	UserID             int64 `gorm:"primaryKey;autoIncrement:false"`
	IsNetworker        bool  `gorm:"not null"`
	IsSecret           bool  `gorm:"not null"`
	IsPseudo           bool  `gorm:"not null"`
	Rank               int   `gorm:"not null"`
	AvailableVotes     int   `gorm:"not null"`
	LastVoteUpdateTime time.Time
	Avatar             string `gorm:"size:128;not null"`
	SkinID             *int64
	Color              int `gorm:"not null"`
	ColumnColor        int `gorm:"not null"`
}

// MaxVotes максимальный запас голосов для ранга
func MaxVotes(rank int) int {
	return 20 + 8*rank
}

// MaxVotes максимальный запас голосов профиля
func (p *Profile) MaxVotes() int {
	return MaxVotes(p.Rank)
}

// AboutMeAnswer одна из шести пар вопрос/ответ анкеты
type AboutMeAnswer struct {
	ID         int64 `gorm:"primaryKey"`
	UserID     int64 `gorm:"not null;uniqueIndex:idx_about_me_position;uniqueIndex:idx_about_me_question"`
	Position   int   `gorm:"not null;uniqueIndex:idx_about_me_position"`
	QuestionID int64 `gorm:"not null;uniqueIndex:idx_about_me_question"`
	AnswerID   int64 `gorm:"not null"`
}

// TableName задает имя таблицы анкеты
func (AboutMeAnswer) TableName() string {
	return "about_me_answers"
}
