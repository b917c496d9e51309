package models

import (
	"time"
)

// Режимы ответа на письмо
const (
	ReplyModeNormalOnly    = "normal_only"
	ReplyModeNormalAndEasy = "normal_and_easy"
)

// StackView пара предмет/количество в ответах
type StackView struct {
	ItemID int64 `json:"item_id"`
	Qty    int   `json:"qty"`
}

// MessageView полное представление письма
type MessageView struct {
	ID            int64       `json:"id"`
	SenderID      int64       `json:"sender_id"`
	SenderName    string      `json:"sender"`
	RecipientID   int64       `json:"recipient_id"`
	RecipientName string      `json:"recipient"`
	BodyID        int64       `json:"body_id"`
	Subject       string      `json:"subject"`
	Text          string      `json:"text"`
	ReplyBodyID   *int64      `json:"reply_body_id,omitempty"`
	IsRead        bool        `json:"is_read"`
	Attachments   []StackView `json:"attachments"`
	EasyReplies   []int64     `json:"easy_replies"`
	ReplyMode     string      `json:"reply_mode"`
	CreatedAt     time.Time   `json:"created_at"`
}

// FriendshipView отношение с действием, которое к нему привело
type FriendshipView struct {
	FromUserID   int64            `json:"from_user_id"`
	FromUsername string           `json:"from_username"`
	ToUserID     int64            `json:"to_user_id"`
	ToUsername   string           `json:"to_username"`
	Status       FriendshipStatus `json:"status,omitempty"`
	Action       string           `json:"action"`
}

// RankEvent событие повышения ранга
type RankEvent struct {
	Username string `json:"username"`
	Rank     int    `json:"rank"`
}

// BadgeEvent событие получения значка
type BadgeEvent struct {
	Username string `json:"username"`
	BadgeID  int64  `json:"badge_id"`
}

// FriendView друг в списке друзей
type FriendView struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// AboutMeView ответ анкеты
type AboutMeView struct {
	QuestionID int64 `json:"question_id"`
	AnswerID   int64 `json:"answer_id"`
}

// ModuleView модуль на странице или в инвентаре
type ModuleView struct {
	ID          int64 `json:"id"`
	ItemID      int64 `json:"item_id"`
	PosX        *int  `json:"pos_x,omitempty"`
	PosY        *int  `json:"pos_y,omitempty"`
	IsSetup     *bool `json:"is_setup,omitempty"`
	TotalClicks int   `json:"total_clicks"`
}

// PageView страница пользователя
type PageView struct {
	UserID      int64         `json:"user_id"`
	Username    string        `json:"username"`
	Rank        int           `json:"rank"`
	Avatar      string        `json:"avatar"`
	SkinID      *int64        `json:"skin_id,omitempty"`
	Color       int           `json:"color"`
	ColumnColor int           `json:"column_color"`
	Modules     []ModuleView  `json:"modules"`
	AboutMe     []AboutMeView `json:"about_me"`
	Friends     []FriendView  `json:"friends"`
}

// ModuleSettings настройки модуля; заполнено ровно одно поле, соответствующее варианту
type ModuleSettings struct {
	Appearance  *AppearanceSettings `json:"appearance,omitempty"`
	Text        *TextSettings       `json:"text,omitempty"`
	RocketTheme *int                `json:"rocket_theme,omitempty"`
	Soundtrack  []SoundtrackCell    `json:"soundtrack,omitempty"`
	Stickers    []StickerPlacement  `json:"stickers,omitempty"`
	UGC         *UGCSettings        `json:"ugc,omitempty"`
	Friends     []int64             `json:"friends,omitempty"`
	Trade       *TradeSettings      `json:"trade,omitempty"`
	Arcade      *ArcadeSettings     `json:"arcade,omitempty"`
}

type AppearanceSettings struct {
	BackgroundID *int64 `json:"background_id,omitempty"`
	Color        int    `json:"color"`
}

type TextSettings struct {
	BodyID int64 `json:"body_id"`
}

type SoundtrackCell struct {
	LoopID *int64 `json:"loop_id,omitempty"`
	Pan    int    `json:"pan"`
}

type StickerPlacement struct {
	ItemID   int64   `json:"item_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ScaleX   float64 `json:"scale_x"`
	ScaleY   float64 `json:"scale_y"`
	Rotation float64 `json:"rotation"`
	Depth    int     `json:"depth"`
}

type UGCSettings struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

type TradeSettings struct {
	GiveItemID    int64 `json:"give_item_id"`
	GiveQty       int   `json:"give_qty"`
	RequestItemID int64 `json:"request_item_id"`
	RequestQty    int   `json:"request_qty"`
}

// ArcadeSettings настройки аркады; строки передаются распакованными ячейками
type ArcadeSettings struct {
	SkinIDs          []int64     `json:"skin_ids,omitempty"`
	ArrowBitmap      uint64      `json:"arrow_bitmap,omitempty"`
	SoundtrackLoopID *int64      `json:"soundtrack_loop_id,omitempty"`
	Timer            int         `json:"timer,omitempty"`
	Houses           []GridPoint `json:"houses,omitempty"`
	StartPositions   []GridPoint `json:"start_positions,omitempty"`
	Tiles            []int       `json:"tiles,omitempty"`
	EnergyUsed       int         `json:"energy_used,omitempty"`
	Rows             [][]int     `json:"rows,omitempty"`
}

// ModuleDetailsView модуль с настройками и, для владельца, текущим урожаем
type ModuleDetailsView struct {
	Module   ModuleView     `json:"module"`
	OwnerID  int64          `json:"owner_id"`
	Settings ModuleSettings `json:"settings"`
	Yield    *int           `json:"yield,omitempty"`
}
