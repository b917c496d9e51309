package service

import (
	"context"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// LayoutEntry желаемое положение модуля на странице. ModuleID nil означает новый экземпляр,
// который берется из инвентаря.
type LayoutEntry struct {
	ModuleID *int64
	ItemID   int64
	X        int
	Y        int
}

type position struct {
	x, y int
}

func moduleView(m *models.Module) models.ModuleView {
	return models.ModuleView{
		ID:          m.ID,
		ItemID:      m.ItemID,
		PosX:        m.PosX,
		PosY:        m.PosY,
		IsSetup:     m.IsSetup,
		TotalClicks: m.TotalClicks,
	}
}

// validateLayout проверяет границы, занятость клеток и принадлежность модулей
func validateLayout(entries []LayoutEntry, existing map[int64]*models.Module) error {
	taken := make(map[position]bool, len(entries))
	used := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if e.X < 0 || e.X >= models.PageColumns || e.Y < 0 || e.Y >= models.PageRows {
			return apperrors.Validation("position (%d,%d) is off the page", e.X, e.Y)
		}
		pos := position{e.X, e.Y}
		if taken[pos] {
			return apperrors.Validation("position (%d,%d) is occupied", e.X, e.Y)
		}
		taken[pos] = true

		if e.ModuleID == nil {
			continue
		}
		m, ok := existing[*e.ModuleID]
		if !ok {
			return apperrors.NotFound("module %d", *e.ModuleID)
		}
		if used[m.ID] {
			return apperrors.Validation("module %d placed twice", m.ID)
		}
		used[m.ID] = true
		if e.ItemID != 0 && e.ItemID != m.ItemID {
			return apperrors.Validation("module %d is item %d, not %d", m.ID, m.ItemID, e.ItemID)
		}
	}
	return nil
}

// removeModule убирает экземпляр: настроенный модуль сначала разбирается, затем человек
// получает сам модуль обратно в инвентарь
func (t *txn) removeModule(m *models.Module, def *catalog.Module) error {
	if m.IsSetup != nil && *m.IsSetup {
		if err := t.teardown(m, def); err != nil {
			return err
		}
	}
	networker, err := t.isNetworker(m.OwnerID)
	if err != nil {
		return err
	}
	if !networker {
		if err := t.add(m.OwnerID, m.ItemID, 1); err != nil {
			return err
		}
	}
	return t.repo.DeleteModule(m.ID)
}

// SaveLayout сохраняет раскладку страницы целиком; любая ошибка отменяет все изменения
func (s *Service) SaveLayout(ctx context.Context, ownerID int64, entries []LayoutEntry) ([]models.ModuleView, error) {
	var out []models.ModuleView
	err := s.run(ctx, "page_save_layout", func(t *txn) error {
		if _, err := t.repo.UserByID(ownerID); err != nil {
			return err
		}
		modules, err := t.repo.ModulesByOwnerForUpdate(ownerID)
		if err != nil {
			return err
		}
		existing := make(map[int64]*models.Module, len(modules))
		for i := range modules {
			existing[modules[i].ID] = &modules[i]
		}
		if err := validateLayout(entries, existing); err != nil {
			return err
		}

		kept := make(map[int64]bool, len(entries))
		for _, e := range entries {
			if e.ModuleID != nil {
				kept[*e.ModuleID] = true
			}
		}
		keptIDs := make([]int64, 0, len(kept))
		for i := range modules {
			m := &modules[i]
			if kept[m.ID] {
				keptIDs = append(keptIDs, m.ID)
				continue
			}
			def, err := t.moduleDef(m)
			if err != nil {
				return err
			}
			if err := t.removeModule(m, def); err != nil {
				return err
			}
		}

		if err := t.repo.ClearModulePositions(keptIDs); err != nil {
			return err
		}

		out = make([]models.ModuleView, 0, len(entries))
		for _, e := range entries {
			x, y := e.X, e.Y
			if e.ModuleID != nil {
				m := existing[*e.ModuleID]
				m.PosX, m.PosY = &x, &y
				if err := t.repo.SaveModule(m); err != nil {
					return err
				}
				out = append(out, moduleView(m))
				continue
			}

			def, ok := t.catalog.Module(e.ItemID)
			if !ok {
				return apperrors.Validation("item %d is not a module", e.ItemID)
			}
			if err := t.remove(ownerID, e.ItemID, 1); err != nil {
				return err
			}
			m := &models.Module{
				OwnerID:         ownerID,
				ItemID:          e.ItemID,
				PosX:            &x,
				PosY:            &y,
				LastHarvestTime: t.now,
			}
			if def.NeedsSetup() {
				m.IsSetup = boolPtr(false)
			}
			if err := t.repo.CreateModule(m); err != nil {
				return err
			}
			out = append(out, moduleView(m))
		}
		t.out.touch(ownerID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Page layout saved", zap.Int64("user_id", ownerID), zap.Int("modules", len(out)))
	return out, nil
}
