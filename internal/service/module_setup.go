package service

import (
	"context"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"
)

// setupCosts что забирает настройка: give у обменов, иначе каталожные затраты
func (t *txn) setupCosts(m *models.Module, def *catalog.Module) ([]catalog.Stack, error) {
	if def.EditorType.IsTrade() {
		trade, err := t.repo.ModuleTrade(m.ID)
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Validation("module %d has no trade settings", m.ID)
		}
		if err != nil {
			return nil, err
		}
		return []catalog.Stack{{Item: trade.GiveItemID, Qty: trade.GiveQty}}, nil
	}
	return def.SetupCosts, nil
}

// setup активирует модуль; для уже настроенного ничего не делает
func (t *txn) setup(m *models.Module, def *catalog.Module) error {
	if !def.NeedsSetup() {
		return apperrors.Validation("module %d does not need setup", m.ID)
	}
	if m.IsSetup != nil && *m.IsSetup {
		return nil
	}

	if slots := def.EditorType.FriendSlots(); slots > 0 {
		friends, err := t.repo.ModuleFriends(m.ID)
		if err != nil {
			return err
		}
		if len(friends) != slots {
			return apperrors.Validation("module %d needs %d friends, has %d", m.ID, slots, len(friends))
		}
	}

	costs, err := t.setupCosts(m, def)
	if err != nil {
		return err
	}
	for _, c := range costs {
		if err := t.remove(m.OwnerID, c.Item, c.Qty); err != nil {
			return err
		}
	}

	m.LastHarvestTime = t.now
	m.IsSetup = boolPtr(true)
	if err := t.repo.SaveModule(m); err != nil {
		return err
	}
	t.out.touch(m.OwnerID)
	return nil
}

// teardown деактивирует модуль и возвращает человеку затраты настройки
func (t *txn) teardown(m *models.Module, def *catalog.Module) error {
	if m.IsSetup == nil {
		return apperrors.Validation("module %d does not need setup", m.ID)
	}
	if !*m.IsSetup {
		return nil
	}

	networker, err := t.isNetworker(m.OwnerID)
	if err != nil {
		return err
	}
	if !networker {
		costs, err := t.setupCosts(m, def)
		if err != nil {
			return err
		}
		for _, c := range costs {
			if err := t.add(m.OwnerID, c.Item, c.Qty); err != nil {
				return err
			}
		}
	}

	m.IsSetup = boolPtr(false)
	if err := t.repo.SaveModule(m); err != nil {
		return err
	}
	t.out.touch(m.OwnerID)
	return nil
}

// SetupModule настраивает модуль владельца
func (s *Service) SetupModule(ctx context.Context, ownerID, moduleID int64) (*models.ModuleView, error) {
	var view models.ModuleView
	err := s.run(ctx, "module_setup", func(t *txn) error {
		m, def, err := t.ownModule(ownerID, moduleID)
		if err != nil {
			return err
		}
		if err := t.setup(m, def); err != nil {
			return err
		}
		view = moduleView(m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// TeardownModule разбирает модуль владельца
func (s *Service) TeardownModule(ctx context.Context, ownerID, moduleID int64) (*models.ModuleView, error) {
	var view models.ModuleView
	err := s.run(ctx, "module_teardown", func(t *txn) error {
		m, def, err := t.ownModule(ownerID, moduleID)
		if err != nil {
			return err
		}
		if err := t.teardown(m, def); err != nil {
			return err
		}
		view = moduleView(m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}
