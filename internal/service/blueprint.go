package service

import (
	"context"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// BlueprintResult итог применения чертежа
type BlueprintResult struct {
	Build int64 `json:"build"`
	// Added false, если шедевр или значок уже были у пользователя
	Added bool `json:"added"`
	Rank  int  `json:"rank"`
}

// UseBlueprint расходует требования чертежа и выдает результат. Новый шедевр повышает ранг,
// повторный шедевр или значок ничего не дают.
func (s *Service) UseBlueprint(ctx context.Context, userID, blueprintItem int64) (*BlueprintResult, error) {
	bp, ok := s.catalog.Blueprint(blueprintItem)
	if !ok {
		return nil, apperrors.Validation("item %d is not a blueprint", blueprintItem)
	}
	build, _ := s.catalog.Item(bp.Build)

	result := &BlueprintResult{Build: bp.Build}
	err := s.run(ctx, "blueprint_use", func(t *txn) error {
		has, err := t.has(userID, bp.Item, 1)
		if err != nil {
			return err
		}
		if !has {
			return apperrors.ErrInsufficientItems
		}
		for _, req := range bp.Requirements {
			if err := t.remove(userID, req.Item, req.Qty); err != nil {
				return err
			}
		}

		profile, err := t.lockProfile(userID)
		if err != nil {
			return err
		}
		result.Rank = profile.Rank

		switch build.Type {
		case catalog.ItemTypeMasterpiece, catalog.ItemTypeBadge:
			owned, err := t.owns(userID, bp.Build)
			if err != nil {
				return err
			}
			if owned {
				return nil
			}
			if build.Type == catalog.ItemTypeMasterpiece {
				if err := t.rankUp(profile); err != nil {
					return err
				}
				result.Rank = profile.Rank
			}
		}

		result.Added = true
		return t.add(userID, bp.Build, 1)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Blueprint used",
		zap.Int64("user_id", userID),
		zap.Int64("blueprint", blueprintItem),
		zap.Bool("added", result.Added),
		zap.Int("rank", result.Rank))
	return result, nil
}

// rankUp повышает ранг и отправляет событие rank. На максимальном ранге ничего не делает.
func (t *txn) rankUp(profile *models.Profile) error {
	if profile.Rank >= models.MaxRank {
		return nil
	}
	profile.Rank++
	if err := t.repo.SaveProfile(profile); err != nil {
		return err
	}
	name, err := t.username(profile.UserID)
	if err != nil {
		return err
	}
	t.emit(profile.UserID, models.EventRank, models.RankEvent{Username: name, Rank: profile.Rank})
	t.out.touch(profile.UserID)
	return nil
}
