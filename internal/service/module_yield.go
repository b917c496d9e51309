package service

import (
	"context"
	"time"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/clock"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// YieldResult накопленный урожай и неучтенные остатки времени и кликов
type YieldResult struct {
	Yield          int
	TimeRemainder  time.Duration
	ClickRemainder int
}

// needsActivation модуль требует настройки и сейчас не настроен
func needsActivation(m *models.Module, def *catalog.Module) bool {
	return def.NeedsSetup() && (m.IsSetup == nil || !*m.IsSetup)
}

// CalcYield считает урожай модуля к моменту now: время и клики делятся нацело,
// сумма с отложенным урожаем ограничена max_yield
func CalcYield(m *models.Module, def *catalog.Module, now time.Time) YieldResult {
	h := def.Harvest
	if h == nil {
		return YieldResult{}
	}
	if needsActivation(m, def) {
		return YieldResult{Yield: min(m.YieldSinceLastHarvest, h.MaxYield)}
	}

	elapsed := max(now.Sub(m.LastHarvestTime), 0)

	timeYield, timeRemainder := 0, elapsed
	if h.YieldPerDay > 0 {
		interval := clock.Day / time.Duration(h.YieldPerDay)
		timeYield = int(elapsed / interval)
		timeRemainder = elapsed % interval
	}

	clickYield, clickRemainder := 0, m.ClicksSinceLastHarvest
	if h.ClicksPerYield > 0 {
		clickYield = m.ClicksSinceLastHarvest / h.ClicksPerYield
		clickRemainder = m.ClicksSinceLastHarvest % h.ClicksPerYield
	}

	return YieldResult{
		Yield:          min(timeYield+clickYield+m.YieldSinceLastHarvest, h.MaxYield),
		TimeRemainder:  timeRemainder,
		ClickRemainder: clickRemainder,
	}
}

// harvest выдает урожай владельцу, а для friend share и выступлений еще и друзьям в слотах
func (t *txn) harvest(m *models.Module, def *catalog.Module) (YieldResult, error) {
	if def.Harvest == nil {
		return YieldResult{}, apperrors.Validation("module %d does not yield", m.ID)
	}
	res := CalcYield(m, def, t.now)

	if res.Yield > 0 {
		if err := t.add(m.OwnerID, def.Harvest.YieldItem, res.Yield); err != nil {
			return res, err
		}
		if def.EditorType.FriendSlots() > 0 {
			friends, err := t.repo.ModuleFriends(m.ID)
			if err != nil {
				return res, err
			}
			for _, f := range friends {
				if err := t.add(f.FriendID, def.Harvest.YieldItem, res.Yield); err != nil {
					return res, err
				}
			}
		}
	}

	m.YieldSinceLastHarvest = 0
	m.LastHarvestTime = t.now.Add(-res.TimeRemainder)
	m.ClicksSinceLastHarvest = res.ClickRemainder
	if m.IsSetup != nil && *m.IsSetup {
		m.IsSetup = boolPtr(false)
	}
	if err := t.repo.SaveModule(m); err != nil {
		return res, err
	}
	t.out.touch(m.OwnerID)
	return res, nil
}

// ownModule блокирует модуль владельца; чужой модуль считается отсутствующим
func (t *txn) ownModule(ownerID, moduleID int64) (*models.Module, *catalog.Module, error) {
	m, err := t.repo.ModuleForUpdate(moduleID)
	if err != nil {
		return nil, nil, err
	}
	if m.OwnerID != ownerID {
		return nil, nil, apperrors.NotFound("module %d", moduleID)
	}
	def, err := t.moduleDef(m)
	if err != nil {
		return nil, nil, err
	}
	return m, def, nil
}

func (t *txn) moduleDef(m *models.Module) (*catalog.Module, error) {
	def, ok := t.catalog.Module(m.ItemID)
	if !ok {
		return nil, apperrors.Internal("module item is missing from catalog", nil)
	}
	return def, nil
}

// Harvest собирает урожай модуля
func (s *Service) Harvest(ctx context.Context, ownerID, moduleID int64) (*models.StackView, error) {
	var out *models.StackView
	err := s.run(ctx, "module_harvest", func(t *txn) error {
		m, def, err := t.ownModule(ownerID, moduleID)
		if err != nil {
			return err
		}
		res, err := t.harvest(m, def)
		if err != nil {
			return err
		}
		out = &models.StackView{ItemID: def.Harvest.YieldItem, Qty: res.Yield}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Module harvested",
		zap.Int64("user_id", ownerID),
		zap.Int64("module_id", moduleID),
		zap.Int("yield", out.Qty))
	return out, nil
}

func boolPtr(v bool) *bool {
	return &v
}
