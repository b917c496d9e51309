package models

import (
	"time"
)

// Размер страницы пользователя
const (
	PageColumns = 3
	PageRows    = 4
)

// Module экземпляр модуля. Позиция либо задана на странице, либо пуста (модуль в руках)
type Module struct {
	ID                     int64 `gorm:"primaryKey"`
	OwnerID                int64 `gorm:"not null;index;uniqueIndex:idx_module_position"`
	ItemID                 int64 `gorm:"not null"`
	PosX                   *int  `gorm:"uniqueIndex:idx_module_position"`
	PosY                   *int  `gorm:"uniqueIndex:idx_module_position"`
	LastHarvestTime        time.Time
	ClicksSinceLastHarvest int `gorm:"not null"`
	YieldSinceLastHarvest  int `gorm:"not null"`
	TotalClicks            int `gorm:"not null"`
	IsSetup                *bool
	CreatedAt              time.Time `gorm:"autoCreateTime"`
}

// OnPage сообщает, размещен ли модуль на странице
func (m *Module) OnPage() bool {
	return m.PosX != nil && m.PosY != nil
}

// IsActive true, если модуль не требует настройки или уже настроен
func (m *Module) IsActive() bool {
	return m.IsSetup == nil || *m.IsSetup
}

// ModuleAppearance общий вариант оформления модуля
type ModuleAppearance struct {
	ModuleID     int64 `gorm:"primaryKey;autoIncrement:false"`
	BackgroundID *int64
	Color        int `gorm:"not null"`
}

// ModuleText тело сообщения, которое показывает модуль networker-а
type ModuleText struct {
	ModuleID int64 `gorm:"primaryKey;autoIncrement:false"`
	BodyID   int64 `gorm:"not null"`
}

// ModuleRocketTheme тема ракетной игры
type ModuleRocketTheme struct {
	ModuleID int64 `gorm:"primaryKey;autoIncrement:false"`
	Theme    int   `gorm:"not null"`
}

// ModuleSoundtrackCell ячейка сетки саундтрека 4x4
type ModuleSoundtrackCell struct {
	ID       int64 `gorm:"primaryKey"`
	ModuleID int64 `gorm:"not null;uniqueIndex:idx_soundtrack_cell"`
	Cell     int   `gorm:"not null;uniqueIndex:idx_soundtrack_cell"`
	LoopID   *int64
	Pan      int `gorm:"not null"`
}

// ModuleSticker размещенный на модуле стикер
type ModuleSticker struct {
	ID       int64 `gorm:"primaryKey"`
	ModuleID int64 `gorm:"not null;index"`
	ItemID   int64 `gorm:"not null"`
	X        float64
	Y        float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64
	Depth    int
}

// ModuleUGCRef ссылка на пользовательский контент во внешнем хранилище
type ModuleUGCRef struct {
	ModuleID int64  `gorm:"primaryKey;autoIncrement:false"`
	Kind     string `gorm:"size:16;not null"`
	Ref      string `gorm:"size:255;not null"`
}

// TableName задает имя таблицы ссылок на UGC
func (ModuleUGCRef) TableName() string {
	return "module_ugc_refs"
}

// ModuleFriend друг в слоте модуля (friend share, трио, группа)
type ModuleFriend struct {
	ID       int64 `gorm:"primaryKey"`
	ModuleID int64 `gorm:"not null;uniqueIndex:idx_module_friend_slot"`
	Slot     int   `gorm:"not null;uniqueIndex:idx_module_friend_slot"`
	FriendID int64 `gorm:"not null"`
}

// ModuleTrade условия обмена: владелец отдает give и получает request
type ModuleTrade struct {
	ModuleID      int64 `gorm:"primaryKey;autoIncrement:false"`
	GiveItemID    int64 `gorm:"not null"`
	GiveQty       int   `gorm:"not null"`
	RequestItemID int64 `gorm:"not null"`
	RequestQty    int   `gorm:"not null"`
}

// ArcadeKind разновидность аркады
type ArcadeKind string

const (
	ArcadeConcert     ArcadeKind = "CONCERT"
	ArcadeDelivery    ArcadeKind = "DELIVERY"
	ArcadeDestructoid ArcadeKind = "DESTRUCTOID"
	ArcadeHop         ArcadeKind = "HOP"
)

// GridPoint клетка игрового поля
type GridPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ModuleArcadeGame упакованные настройки аркады.
// Строки Row0..Row2 хранят битовые упаковки ячеек (destructoid по 3 бита, hop по 2 бита).
type ModuleArcadeGame struct {
	ModuleID         int64      `gorm:"primaryKey;autoIncrement:false"`
	Kind             ArcadeKind `gorm:"size:16;not null"`
	SkinIDs          []int64    `gorm:"serializer:json"`
	ArrowBitmap      int64
	SoundtrackLoopID *int64
	Timer            int
	Houses           []GridPoint `gorm:"serializer:json"`
	StartPositions   []GridPoint `gorm:"serializer:json"`
	Tiles            []int       `gorm:"serializer:json"`
	EnergyUsed       int
	Row0             int64
	Row1             int64
	Row2             int64
}

// Rows возвращает упаковки строк как беззнаковые значения
func (g *ModuleArcadeGame) Rows() [3]uint64 {
	return [3]uint64{uint64(g.Row0), uint64(g.Row1), uint64(g.Row2)}
}

// SetRows сохраняет упаковки строк
func (g *ModuleArcadeGame) SetRows(rows [3]uint64) {
	g.Row0, g.Row1, g.Row2 = int64(rows[0]), int64(rows[1]), int64(rows[2])
}
