package models

import (
	"time"
)

// Типы событий webhook
const (
	EventMessages    = "messages"
	EventFriendships = "friendships"
	EventRank        = "rank"
	EventBadge       = "badge"
)

// OAuthClient внешний клиент интеграции
type OAuthClient struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:64;not null;uniqueIndex"`
	APIToken    string `gorm:"size:128;not null;uniqueIndex"`
	RedirectURL string `gorm:"size:512;not null"`
	CreatedAt   time.Time
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// AuthCode одноразовый код авторизации
type AuthCode struct {
	ID          int64  `gorm:"primaryKey"`
	ClientID    int64  `gorm:"not null;index"`
	UserID      int64  `gorm:"not null;index"`
	Code        string `gorm:"size:64;not null;uniqueIndex"`
	SessionID   string `gorm:"size:128;not null"`
	GeneratedAt time.Time
}

func (AuthCode) TableName() string {
	return "oauth_auth_codes"
}

// Token токен доступа, выданный клиенту от имени пользователя
type Token struct {
	ID          int64  `gorm:"primaryKey"`
	ClientID    int64  `gorm:"not null;index"`
	UserID      int64  `gorm:"not null;index"`
	AccessToken string `gorm:"size:64;not null;uniqueIndex"`
	CreatedAt   time.Time
}

func (Token) TableName() string {
	return "oauth_tokens"
}

// Webhook подписка клиента на события пользователя
type Webhook struct {
	ID          int64  `gorm:"primaryKey"`
	ClientID    int64  `gorm:"not null;index"`
	OwnerUserID int64  `gorm:"not null;index:idx_webhook_owner_event"`
	EventType   string `gorm:"size:16;not null;index:idx_webhook_owner_event"`
	URL         string `gorm:"size:512;not null"`
	Secret      string `gorm:"size:128;not null"`
	TokenID     *int64
	CreatedAt   time.Time
}

// IntegrationMessage награда, которую клиент может выдать пользователю
type IntegrationMessage struct {
	ID          int64 `gorm:"primaryKey"`
	ClientID    int64 `gorm:"not null;uniqueIndex:idx_integration_award"`
	Award       int   `gorm:"not null;uniqueIndex:idx_integration_award"`
	TemplateID  int64 `gorm:"not null"`
	NetworkerID int64 `gorm:"not null"`
}

// AllModels перечисляет все таблицы для миграции
func AllModels() []any {
	return []any{
		&User{},
		&Profile{},
		&AboutMeAnswer{},
		&InventoryStack{},
		&Module{},
		&ModuleAppearance{},
		&ModuleText{},
		&ModuleRocketTheme{},
		&ModuleSoundtrackCell{},
		&ModuleSticker{},
		&ModuleUGCRef{},
		&ModuleFriend{},
		&ModuleTrade{},
		&ModuleArcadeGame{},
		&Friendship{},
		&Message{},
		&Attachment{},
		&OAuthClient{},
		&AuthCode{},
		&Token{},
		&Webhook{},
		&IntegrationMessage{},
	}
}
