package models

// InventoryStack стопка одинаковых предметов пользователя.
// Строка с нулевым количеством не существует: остаток ноль означает удаление строки.
type InventoryStack struct {
	ID      int64 `gorm:"primaryKey"`
	OwnerID int64 `gorm:"not null;uniqueIndex:idx_inventory_owner_item"`
	ItemID  int64 `gorm:"not null;uniqueIndex:idx_inventory_owner_item"`
	Qty     int   `gorm:"not null;check:chk_inventory_qty_positive,qty > 0"`
}
