package postgres

import (
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Quantity возвращает количество предмета у владельца (0, если строки нет)
func (r *Repository) Quantity(ownerID, itemID int64) (int, error) {
	var qty int
	err := r.tx.Model(&models.InventoryStack{}).
		Where("owner_id = ? AND item_id = ?", ownerID, itemID).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&qty).Error
	if err != nil {
		return 0, translate(err, "inventory %d/%d", ownerID, itemID)
	}
	return qty, nil
}

// AddItems добавляет n предметов одним upsert: сливает со стопкой или создает новую.
// Конкурентные вставки одной пары владелец/предмет сериализуются на уникальном индексе.
func (r *Repository) AddItems(ownerID, itemID int64, n int) error {
	if n <= 0 {
		return apperrors.Validation("quantity must be positive, got %d", n)
	}

	stack := models.InventoryStack{OwnerID: ownerID, ItemID: itemID, Qty: n}
	err := r.tx.Clauses(mergeQty("inventory_stacks", "owner_id", "item_id")).Create(&stack).Error
	return translate(err, "inventory %d/%d", ownerID, itemID)
}

// mergeQty при конфликте по ключу прибавляет qty вставляемой строки к существующей
func mergeQty(table string, keys ...string) clause.OnConflict {
	columns := make([]clause.Column, 0, len(keys))
	for _, k := range keys {
		columns = append(columns, clause.Column{Name: k})
	}
	return clause.OnConflict{
		Columns:   columns,
		DoUpdates: clause.Assignments(map[string]any{"qty": gorm.Expr(table + ".qty + excluded.qty")}),
	}
}

// RemoveItems забирает n предметов. Остаток ноль удаляет строку, нехватка дает ErrInsufficientItems
// и не меняет состояние.
func (r *Repository) RemoveItems(ownerID, itemID int64, n int) error {
	if n <= 0 {
		return apperrors.Validation("quantity must be positive, got %d", n)
	}

	res := r.tx.Where("owner_id = ? AND item_id = ? AND qty = ?", ownerID, itemID, n).
		Delete(&models.InventoryStack{})
	if res.Error != nil {
		return translate(res.Error, "inventory %d/%d", ownerID, itemID)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	res = r.tx.Model(&models.InventoryStack{}).
		Where("owner_id = ? AND item_id = ? AND qty > ?", ownerID, itemID, n).
		Update("qty", gorm.Expr("qty - ?", n))
	if res.Error != nil {
		return translate(res.Error, "inventory %d/%d", ownerID, itemID)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrInsufficientItems
	}
	return nil
}

// Inventory возвращает все стопки владельца по возрастанию предмета
func (r *Repository) Inventory(ownerID int64) ([]models.InventoryStack, error) {
	var stacks []models.InventoryStack
	if err := r.tx.Where("owner_id = ?", ownerID).Order("item_id").Find(&stacks).Error; err != nil {
		return nil, translate(err, "inventory %d", ownerID)
	}
	return stacks, nil
}
