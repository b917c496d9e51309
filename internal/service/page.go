package service

import (
	"context"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"

	"go.uber.org/zap"
)

// GetPage страница владельца глазами viewer. Для посетителей секретные networker-ы
// скрыты из списка друзей, поэтому в кэше хранятся два представления.
func (s *Service) GetPage(ctx context.Context, viewerID, ownerID int64) (*models.PageView, error) {
	asOwner := viewerID == ownerID
	if page, ok := s.cache.GetPage(ctx, ownerID, asOwner); ok {
		s.logger.Debug("Page retrieved from cache", zap.Int64("user_id", ownerID))
		return page, nil
	}

	epoch := s.epochs.load(ownerID)
	var page *models.PageView
	err := s.read(ctx, "page_get", func(t *txn) error {
		user, err := t.repo.UserByID(ownerID)
		if err != nil {
			return err
		}
		profile, err := t.repo.Profile(ownerID)
		if err != nil {
			return err
		}
		modules, err := t.repo.ModulesByOwner(ownerID)
		if err != nil {
			return err
		}
		answers, err := t.repo.AboutMe(ownerID)
		if err != nil {
			return err
		}
		friends, err := t.friendViews(ownerID, asOwner)
		if err != nil {
			return err
		}

		page = &models.PageView{
			UserID:      user.ID,
			Username:    user.Username,
			Rank:        profile.Rank,
			Avatar:      profile.Avatar,
			SkinID:      profile.SkinID,
			Color:       profile.Color,
			ColumnColor: profile.ColumnColor,
			Modules:     make([]models.ModuleView, 0, len(modules)),
			AboutMe:     make([]models.AboutMeView, 0, len(answers)),
			Friends:     friends,
		}
		for i := range modules {
			if modules[i].OnPage() {
				page.Modules = append(page.Modules, moduleView(&modules[i]))
			}
		}
		for _, a := range answers {
			page.AboutMe = append(page.AboutMe, models.AboutMeView{QuestionID: a.QuestionID, AnswerID: a.AnswerID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.storeView(ctx, ownerID, epoch, func() { s.cache.SetPage(ctx, page, asOwner) })
	return page, nil
}

// ListInventoryModules модули, которые лежат в инвентаре и могут быть размещены
func (s *Service) ListInventoryModules(ctx context.Context, userID int64) ([]models.StackView, error) {
	return s.inventoryOfType(ctx, "inventory_module_get", userID, catalog.ItemTypeModule)
}

// ListModuleBackgrounds скины, доступные как фон модулей
func (s *Service) ListModuleBackgrounds(ctx context.Context, userID int64) ([]models.StackView, error) {
	return s.inventoryOfType(ctx, "get_module_bgs", userID, catalog.ItemTypeSkin)
}

func (s *Service) inventoryOfType(ctx context.Context, operation string, userID int64, typ catalog.ItemType) ([]models.StackView, error) {
	out := []models.StackView{}
	err := s.read(ctx, operation, func(t *txn) error {
		stacks, err := t.repo.Inventory(userID)
		if err != nil {
			return err
		}
		for _, st := range stacks {
			if t.catalog.IsType(st.ItemID, typ) {
				out = append(out, models.StackView{ItemID: st.ItemID, Qty: st.Qty})
			}
		}
		return nil
	})
	return out, err
}
