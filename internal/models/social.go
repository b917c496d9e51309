package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// FriendshipStatus состояние отношения
type FriendshipStatus string

const (
	FriendshipPending FriendshipStatus = "PENDING"
	FriendshipFriend  FriendshipStatus = "FRIEND"
	FriendshipBlocked FriendshipStatus = "BLOCKED"
)

// Friendship направленное отношение двух пользователей.
// Для неупорядоченной пары существует не более одной строки (уникальный pair_key).
type Friendship struct {
	ID         int64            `gorm:"primaryKey"`
	FromUserID int64            `gorm:"not null;index"`
	ToUserID   int64            `gorm:"not null;index"`
	PairKey    string           `gorm:"size:48;not null;uniqueIndex"`
	Status     FriendshipStatus `gorm:"size:16;not null"`
	CreatedAt  time.Time        `gorm:"autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime"`
}

// PairKey ключ неупорядоченной пары
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// BeforeSave поддерживает pair_key в актуальном состоянии
func (f *Friendship) BeforeSave(tx *gorm.DB) error {
	f.PairKey = PairKey(f.FromUserID, f.ToUserID)
	return nil
}

// Other возвращает второго участника отношения
func (f *Friendship) Other(user int64) int64 {
	if f.FromUserID == user {
		return f.ToUserID
	}
	return f.FromUserID
}

// Message письмо с каталожным телом
type Message struct {
	ID          int64 `gorm:"primaryKey"`
	SenderID    int64 `gorm:"not null;index"`
	RecipientID int64 `gorm:"not null;index"`
	BodyID      int64 `gorm:"not null"`
	ReplyBodyID *int64
	IsRead      bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Attachment предметы "в пути", прикрепленные к письму
type Attachment struct {
	ID        int64 `gorm:"primaryKey"`
	MessageID int64 `gorm:"not null;uniqueIndex:idx_attachment_message_item"`
	ItemID    int64 `gorm:"not null;uniqueIndex:idx_attachment_message_item"`
	Qty       int   `gorm:"not null;check:chk_attachment_qty_positive,qty > 0"`
}
