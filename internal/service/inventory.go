package service

import (
	"context"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// has проверяет наличие n предметов. Networker-ы считаются владельцами любых предметов.
func (t *txn) has(userID, itemID int64, n int) (bool, error) {
	networker, err := t.isNetworker(userID)
	if err != nil {
		return false, err
	}
	if networker {
		return true, nil
	}
	qty, err := t.repo.Quantity(userID, itemID)
	if err != nil {
		return false, err
	}
	return qty >= n, nil
}

// owns проверяет фактическое наличие предмета, без исключения для networker-ов
func (t *txn) owns(userID, itemID int64) (bool, error) {
	qty, err := t.repo.Quantity(userID, itemID)
	if err != nil {
		return false, err
	}
	return qty > 0, nil
}

// add кладет предметы в инвентарь. Получение значка порождает событие badge,
// в том числе когда значок пришел вложением письма.
func (t *txn) add(userID, itemID int64, n int) error {
	item, ok := t.catalog.Item(itemID)
	if !ok {
		return apperrors.Validation("unknown item %d", itemID)
	}
	if err := t.repo.AddItems(userID, itemID, n); err != nil {
		return err
	}
	t.out.touch(userID)

	if item.Type == catalog.ItemTypeBadge {
		name, err := t.username(userID)
		if err != nil {
			return err
		}
		t.emit(userID, models.EventBadge, models.BadgeEvent{Username: name, BadgeID: itemID})
	}
	return nil
}

// remove забирает предметы. У networker-ов ничего не списывается.
func (t *txn) remove(userID, itemID int64, n int) error {
	networker, err := t.isNetworker(userID)
	if err != nil {
		return err
	}
	if networker {
		return nil
	}
	if err := t.repo.RemoveItems(userID, itemID, n); err != nil {
		return err
	}
	t.out.touch(userID)
	return nil
}

// HasItem проверяет, есть ли у пользователя n предметов
func (s *Service) HasItem(ctx context.Context, userID, itemID int64, n int) (bool, error) {
	if n <= 0 {
		n = 1
	}
	var ok bool
	err := s.read(ctx, "inventory_has", func(t *txn) error {
		var err error
		ok, err = t.has(userID, itemID, n)
		return err
	})
	return ok, err
}

// AddItems выдает пользователю предметы
func (s *Service) AddItems(ctx context.Context, userID, itemID int64, n int) error {
	err := s.run(ctx, "inventory_add", func(t *txn) error {
		if _, err := t.repo.UserByID(userID); err != nil {
			return err
		}
		return t.add(userID, itemID, n)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("Items added",
		zap.Int64("user_id", userID), zap.Int64("item_id", itemID), zap.Int("qty", n))
	return nil
}

// RemoveItems забирает у пользователя предметы; нехватка дает ErrInsufficientItems
func (s *Service) RemoveItems(ctx context.Context, userID, itemID int64, n int) error {
	return s.run(ctx, "inventory_remove", func(t *txn) error {
		return t.remove(userID, itemID, n)
	})
}

// ListInventory возвращает инвентарь пользователя
func (s *Service) ListInventory(ctx context.Context, userID int64) ([]models.StackView, error) {
	var out []models.StackView
	err := s.read(ctx, "inventory_list", func(t *txn) error {
		stacks, err := t.repo.Inventory(userID)
		if err != nil {
			return err
		}
		out = stackViews(stacks)
		return nil
	})
	return out, err
}

func stackViews(stacks []models.InventoryStack) []models.StackView {
	out := make([]models.StackView, 0, len(stacks))
	for _, st := range stacks {
		out = append(out, models.StackView{ItemID: st.ItemID, Qty: st.Qty})
	}
	return out
}
