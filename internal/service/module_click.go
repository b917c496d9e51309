package service

import (
	"context"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// ClickResult итог клика по чужому модулю
type ClickResult struct {
	Module   models.ModuleView `json:"module"`
	GuestWon bool              `json:"guest_won"`
	Prize    *models.StackView `json:"prize,omitempty"`
}

// ownerYieldApplies вносит ли клик прибавку к урожаю владельца при данном исходе
func ownerYieldApplies(outcome catalog.ClickOutcome, guestWon bool) bool {
	switch outcome {
	case catalog.OutcomeProbability, catalog.OutcomeArcade:
		return true
	case catalog.OutcomeBattle:
		return !guestWon
	default:
		return false
	}
}

// drawGuestYield разыгрывает приз посетителя. Одна запись выигрывает с вероятностью p/100,
// несколько записей разыгрываются по накопленной вероятности; если лотерея никого не выбрала,
// это нарушение каталога и операция откатывается.
func (t *txn) drawGuestYield(entries []catalog.GuestYield) (*catalog.GuestYield, error) {
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		if t.rng.Intn(100) < entries[0].Probability {
			return &entries[0], nil
		}
		return nil, nil
	}

	roll := t.rng.Intn(100)
	cumulative := 0
	for i := range entries {
		cumulative += entries[i].Probability
		if roll < cumulative {
			return &entries[i], nil
		}
	}
	return nil, apperrors.Internal("guest yield lottery selected nothing", nil)
}

// click клик посетителя по модулю; порядок шагов: сообщение, стоимость, урожай владельца,
// обмен, приз посетителя, счетчики. depth > 0 у ответного клика pseudo-networker-а.
func (t *txn) click(clickerID, moduleID int64, depth int) (*ClickResult, error) {
	m, err := t.repo.ModuleForUpdate(moduleID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID == clickerID {
		return nil, apperrors.ErrCannotClickOwn
	}
	def, err := t.moduleDef(m)
	if err != nil {
		return nil, err
	}

	clicker, err := t.lockProfile(clickerID)
	if err != nil {
		return nil, err
	}
	if !clicker.IsNetworker {
		regenerateVotes(clicker, t.now)
		if clicker.AvailableVotes < 1 {
			return nil, apperrors.ErrOutOfVotes
		}
	}

	owner, err := t.profile(m.OwnerID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive() && !owner.IsNetworker {
		return nil, apperrors.ErrModuleNotReady
	}

	guestWon := t.rng.Bool()

	for _, mm := range def.Messages {
		if t.rng.Intn(100) >= mm.Probability {
			continue
		}
		_, ok, err := t.randomFriend(m.OwnerID)
		if err != nil {
			return nil, err
		}
		if ok {
			if _, err := t.sendTemplate(m.OwnerID, clickerID, mm.Template); err != nil {
				return nil, err
			}
		}
	}

	for _, cost := range def.ExecutionCosts {
		if err := t.remove(clickerID, cost.Item, cost.Qty); err != nil {
			return nil, err
		}
	}

	if ownerYieldApplies(def.ClickOutcome, guestWon) {
		for _, oy := range def.OwnerYields {
			m.YieldSinceLastHarvest += oy.Qty
		}
	}

	if def.EditorType.IsTrade() {
		if err := t.executeTrade(m, clickerID); err != nil {
			return nil, err
		}
	}

	result := &ClickResult{GuestWon: guestWon}
	if def.ClickOutcome != catalog.OutcomeArcade {
		prize, err := t.drawGuestYield(def.GuestYields)
		if err != nil {
			return nil, err
		}
		if prize != nil {
			if err := t.add(clickerID, prize.Item, prize.Qty); err != nil {
				return nil, err
			}
			result.Prize = &models.StackView{ItemID: prize.Item, Qty: prize.Qty}
		}
	}

	m.ClicksSinceLastHarvest++
	m.TotalClicks++
	if !clicker.IsNetworker {
		clicker.AvailableVotes--
	}
	if err := t.repo.SaveProfile(clicker); err != nil {
		return nil, err
	}

	if m.IsSetup != nil && *m.IsSetup && guestWon && def.ClickOutcome != catalog.OutcomeNumClicks {
		m.IsSetup = boolPtr(false)
	}
	if err := t.repo.SaveModule(m); err != nil {
		return nil, err
	}
	t.out.touch(m.OwnerID, clickerID)
	result.Module = moduleView(m)

	if depth == 0 && owner.IsPseudo && owner.IsNetworker && !clicker.IsNetworker {
		t.clickBack(m.OwnerID, clickerID, m.ItemID)
	}
	return result, nil
}

// executeTrade посетитель отдает request владельцу и получает give; обмен закрывается
func (t *txn) executeTrade(m *models.Module, clickerID int64) error {
	trade, err := t.repo.ModuleTrade(m.ID)
	if apperrors.IsNotFound(err) {
		return apperrors.ErrModuleNotReady
	}
	if err != nil {
		return err
	}
	if err := t.remove(clickerID, trade.RequestItemID, trade.RequestQty); err != nil {
		return err
	}
	if err := t.add(m.OwnerID, trade.RequestItemID, trade.RequestQty); err != nil {
		return err
	}
	if err := t.add(clickerID, trade.GiveItemID, trade.GiveQty); err != nil {
		return err
	}
	m.IsSetup = boolPtr(false)
	return nil
}

// clickBack pseudo-networker кликает в ответ по модулям посетителя того же типа.
// Неудачный ответный клик откатывается сам и не влияет на исходный.
func (t *txn) clickBack(networkerID, userID, itemID int64) {
	modules, err := t.repo.ModulesByOwnerAndItem(userID, itemID)
	if err != nil {
		t.logger.Warn("Pseudo networker click back skipped", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	for _, target := range modules {
		err := t.savepoint(func(t *txn) error {
			_, err := t.click(networkerID, target.ID, 1)
			return err
		})
		if err != nil {
			t.logger.Debug("Pseudo networker click back failed",
				zap.Int64("networker_id", networkerID),
				zap.Int64("module_id", target.ID),
				zap.Error(err))
		}
	}
}

// ClickModule голос или запуск чужого модуля (ModuleVote и ModuleExecute)
func (s *Service) ClickModule(ctx context.Context, clickerID, moduleID int64) (*ClickResult, error) {
	var result *ClickResult
	err := s.run(ctx, "module_click", func(t *txn) error {
		var err error
		result, err = t.click(clickerID, moduleID, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Module clicked",
		zap.Int64("user_id", clickerID),
		zap.Int64("module_id", moduleID),
		zap.Bool("guest_won", result.GuestWon))
	return result, nil
}

// CollectWinnings выдает приз аркады после победы в игре
func (s *Service) CollectWinnings(ctx context.Context, clickerID, moduleID int64) (*models.StackView, error) {
	var prize *models.StackView
	err := s.run(ctx, "module_collect_winnings", func(t *txn) error {
		m, err := t.repo.Module(moduleID)
		if err != nil {
			return err
		}
		def, err := t.moduleDef(m)
		if err != nil {
			return err
		}
		if def.ClickOutcome != catalog.OutcomeArcade {
			return apperrors.Validation("module %d is not an arcade", moduleID)
		}

		roll := t.rng.Intn(100)
		cumulative := 0
		for _, gy := range def.GuestYields {
			cumulative += gy.Probability
			if roll < cumulative {
				prize = &models.StackView{ItemID: gy.Item, Qty: gy.Qty}
				break
			}
		}
		if prize == nil {
			return apperrors.Internal("arcade prize lottery selected nothing", nil)
		}
		return t.add(clickerID, prize.ItemID, prize.Qty)
	})
	if err != nil {
		return nil, err
	}
	return prize, nil
}
