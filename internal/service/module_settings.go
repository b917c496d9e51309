package service

import (
	"context"
	"math"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"
)

// Ограничения настроек модулей
const (
	soundtrackCells  = 16
	arcadeRows       = 3
	deliveryPoints   = 3
	maxDeliveryTile  = 0xFF
	maxPan           = 1
	maxUGCRefLength  = 255
	maxStickersOnPad = 64
)

var ugcKinds = map[string]bool{"image": true, "model": true}

// requireOwnedType проверяет тип предмета и, для людей, его наличие в инвентаре
func (t *txn) requireOwnedType(ownerID, itemID int64, typ catalog.ItemType) error {
	if !t.catalog.IsType(itemID, typ) {
		return apperrors.Validation("item %d is not %s", itemID, typ)
	}
	ok, err := t.has(ownerID, itemID, 1)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrInsufficientItems
	}
	return nil
}

// buildSettings проверяет настройки варианта и строит строки для сохранения
func (t *txn) buildSettings(m *models.Module, def *catalog.Module, s models.ModuleSettings) ([]any, error) {
	switch def.EditorType {
	case catalog.EditorSimple:
		return nil, nil

	case catalog.EditorAppearance:
		if s.Appearance == nil {
			return nil, apperrors.Validation("appearance settings required")
		}
		if s.Appearance.Color < 0 {
			return nil, apperrors.Validation("color %d out of range", s.Appearance.Color)
		}
		if bg := s.Appearance.BackgroundID; bg != nil {
			if err := t.requireOwnedType(m.OwnerID, *bg, catalog.ItemTypeSkin); err != nil {
				return nil, err
			}
		}
		return []any{&models.ModuleAppearance{ModuleID: m.ID, BackgroundID: s.Appearance.BackgroundID, Color: s.Appearance.Color}}, nil

	case catalog.EditorNetworkerText:
		if s.Text == nil {
			return nil, apperrors.Validation("text settings required")
		}
		if _, ok := t.catalog.Body(s.Text.BodyID); !ok {
			return nil, apperrors.Validation("unknown message body %d", s.Text.BodyID)
		}
		return []any{&models.ModuleText{ModuleID: m.ID, BodyID: s.Text.BodyID}}, nil

	case catalog.EditorRocketGame:
		if s.RocketTheme == nil || *s.RocketTheme < 0 {
			return nil, apperrors.Validation("rocket theme required")
		}
		return []any{&models.ModuleRocketTheme{ModuleID: m.ID, Theme: *s.RocketTheme}}, nil

	case catalog.EditorSoundtrack:
		return t.soundtrackRows(m, s.Soundtrack)

	case catalog.EditorSticker:
		if len(s.Stickers) > maxStickersOnPad {
			return nil, apperrors.Validation("too many stickers: %d", len(s.Stickers))
		}
		rows := make([]any, 0, len(s.Stickers))
		for _, st := range s.Stickers {
			if err := t.requireOwnedType(m.OwnerID, st.ItemID, catalog.ItemTypeSticker); err != nil {
				return nil, err
			}
			for _, v := range []float64{st.X, st.Y, st.ScaleX, st.ScaleY, st.Rotation} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, apperrors.Validation("sticker %d has invalid geometry", st.ItemID)
				}
			}
			rows = append(rows, &models.ModuleSticker{
				ModuleID: m.ID,
				ItemID:   st.ItemID,
				X:        st.X,
				Y:        st.Y,
				ScaleX:   st.ScaleX,
				ScaleY:   st.ScaleY,
				Rotation: st.Rotation,
				Depth:    st.Depth,
			})
		}
		return rows, nil

	case catalog.EditorUGC:
		if s.UGC == nil || !ugcKinds[s.UGC.Kind] || s.UGC.Ref == "" || len(s.UGC.Ref) > maxUGCRefLength {
			return nil, apperrors.Validation("invalid ugc reference")
		}
		return []any{&models.ModuleUGCRef{ModuleID: m.ID, Kind: s.UGC.Kind, Ref: s.UGC.Ref}}, nil

	case catalog.EditorFriendShare, catalog.EditorTrioPerformance, catalog.EditorGroupPerformance:
		return t.friendRows(m, def.EditorType.FriendSlots(), s.Friends)

	case catalog.EditorTrade, catalog.EditorNetworkerTrade, catalog.EditorLoopShoppe, catalog.EditorStickerShoppe:
		return t.tradeRows(m, def.EditorType, s.Trade)

	case catalog.EditorConcertArcade, catalog.EditorDeliveryArcade, catalog.EditorDestructoidArcade, catalog.EditorHopArcade:
		return t.arcadeRows(m, def.EditorType, s.Arcade)
	}
	return nil, apperrors.Internal("unknown editor type", nil)
}

func (t *txn) soundtrackRows(m *models.Module, cells []models.SoundtrackCell) ([]any, error) {
	if len(cells) != soundtrackCells {
		return nil, apperrors.Validation("soundtrack needs %d cells, got %d", soundtrackCells, len(cells))
	}
	rows := make([]any, 0, len(cells))
	for i, c := range cells {
		if c.Pan < -maxPan || c.Pan > maxPan {
			return nil, apperrors.Validation("cell %d pan %d out of range", i, c.Pan)
		}
		if c.LoopID != nil {
			if err := t.requireOwnedType(m.OwnerID, *c.LoopID, catalog.ItemTypeLoop); err != nil {
				return nil, err
			}
		}
		rows = append(rows, &models.ModuleSoundtrackCell{ModuleID: m.ID, Cell: i, LoopID: c.LoopID, Pan: c.Pan})
	}
	return rows, nil
}

func (t *txn) friendRows(m *models.Module, slots int, friends []int64) ([]any, error) {
	if len(friends) != slots {
		return nil, apperrors.Validation("module needs %d friends, got %d", slots, len(friends))
	}
	seen := make(map[int64]bool, len(friends))
	rows := make([]any, 0, len(friends))
	for i, id := range friends {
		if id == m.OwnerID || seen[id] {
			return nil, apperrors.Validation("friend %d cannot be used twice", id)
		}
		seen[id] = true
		ok, err := t.areFriends(m.OwnerID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.ErrNotFriends
		}
		rows = append(rows, &models.ModuleFriend{ModuleID: m.ID, Slot: i, FriendID: id})
	}
	return rows, nil
}

func (t *txn) tradeRows(m *models.Module, editor catalog.EditorType, tr *models.TradeSettings) ([]any, error) {
	if tr == nil || tr.GiveQty <= 0 || tr.RequestQty <= 0 {
		return nil, apperrors.Validation("trade needs positive give and request")
	}
	for _, id := range []int64{tr.GiveItemID, tr.RequestItemID} {
		if _, ok := t.catalog.Item(id); !ok {
			return nil, apperrors.Validation("unknown item %d", id)
		}
	}
	switch editor {
	case catalog.EditorLoopShoppe:
		if !t.catalog.IsType(tr.GiveItemID, catalog.ItemTypeLoop) {
			return nil, apperrors.Validation("loop shoppe sells loops only")
		}
	case catalog.EditorStickerShoppe:
		if !t.catalog.IsType(tr.GiveItemID, catalog.ItemTypeSticker) {
			return nil, apperrors.Validation("sticker shoppe sells stickers only")
		}
	}
	return []any{&models.ModuleTrade{
		ModuleID:      m.ID,
		GiveItemID:    tr.GiveItemID,
		GiveQty:       tr.GiveQty,
		RequestItemID: tr.RequestItemID,
		RequestQty:    tr.RequestQty,
	}}, nil
}

func (t *txn) arcadeRows(m *models.Module, editor catalog.EditorType, a *models.ArcadeSettings) ([]any, error) {
	if a == nil {
		return nil, apperrors.Validation("arcade settings required")
	}
	game := &models.ModuleArcadeGame{ModuleID: m.ID}

	for _, skin := range a.SkinIDs {
		if !t.catalog.IsType(skin, catalog.ItemTypeSkin) {
			return nil, apperrors.Validation("item %d is not a skin", skin)
		}
	}

	switch editor {
	case catalog.EditorConcertArcade:
		game.Kind = models.ArcadeConcert
		game.SkinIDs = a.SkinIDs
		game.ArrowBitmap = int64(a.ArrowBitmap)
		if a.SoundtrackLoopID != nil && !t.catalog.IsType(*a.SoundtrackLoopID, catalog.ItemTypeLoop) {
			return nil, apperrors.Validation("item %d is not a loop", *a.SoundtrackLoopID)
		}
		game.SoundtrackLoopID = a.SoundtrackLoopID

	case catalog.EditorDeliveryArcade:
		game.Kind = models.ArcadeDelivery
		if a.Timer <= 0 {
			return nil, apperrors.Validation("delivery timer must be positive")
		}
		if len(a.Houses) != deliveryPoints || len(a.StartPositions) != deliveryPoints {
			return nil, apperrors.Validation("delivery needs %d houses and start positions", deliveryPoints)
		}
		for _, tile := range a.Tiles {
			if tile < 0 || tile > maxDeliveryTile {
				return nil, apperrors.Validation("delivery tile %d out of range", tile)
			}
			if _, err := models.DeliveryTile(models.TileKind(tile), models.IsPathTile(tile)); err != nil {
				return nil, apperrors.Validation("delivery tile %d: %v", tile, err)
			}
		}
		game.Timer = a.Timer
		game.Houses = a.Houses
		game.StartPositions = a.StartPositions
		game.Tiles = a.Tiles

	case catalog.EditorDestructoidArcade:
		game.Kind = models.ArcadeDestructoid
		if a.EnergyUsed < 0 {
			return nil, apperrors.Validation("energy must not be negative")
		}
		rows, err := packRows(a.Rows, models.DestructoidCellBits)
		if err != nil {
			return nil, err
		}
		game.SkinIDs = a.SkinIDs
		game.EnergyUsed = a.EnergyUsed
		game.SetRows(rows)

	case catalog.EditorHopArcade:
		game.Kind = models.ArcadeHop
		rows, err := packRows(a.Rows, models.HopCellBits)
		if err != nil {
			return nil, err
		}
		game.SetRows(rows)
	}
	return []any{game}, nil
}

// packRows упаковывает три строки ячеек фиксированной ширины
func packRows(rows [][]int, width uint) ([arcadeRows]uint64, error) {
	var packed [arcadeRows]uint64
	if len(rows) != arcadeRows {
		return packed, apperrors.Validation("arcade needs %d rows, got %d", arcadeRows, len(rows))
	}
	for i, cells := range rows {
		v, err := models.PackCells(cells, width)
		if err != nil {
			return packed, apperrors.Validation("row %d: %v", i, err)
		}
		packed[i] = v
	}
	return packed, nil
}

// loadSettings читает строки настроек модуля
func (t *txn) loadSettings(m *models.Module, def *catalog.Module) (models.ModuleSettings, error) {
	var s models.ModuleSettings
	switch def.EditorType {
	case catalog.EditorAppearance:
		var row models.ModuleAppearance
		if ok, err := t.repo.FindSettings(m.ID, &row); err != nil || !ok {
			return s, err
		}
		s.Appearance = &models.AppearanceSettings{BackgroundID: row.BackgroundID, Color: row.Color}

	case catalog.EditorNetworkerText:
		var row models.ModuleText
		if ok, err := t.repo.FindSettings(m.ID, &row); err != nil || !ok {
			return s, err
		}
		s.Text = &models.TextSettings{BodyID: row.BodyID}

	case catalog.EditorRocketGame:
		var row models.ModuleRocketTheme
		if ok, err := t.repo.FindSettings(m.ID, &row); err != nil || !ok {
			return s, err
		}
		theme := row.Theme
		s.RocketTheme = &theme

	case catalog.EditorSoundtrack:
		var cells []models.ModuleSoundtrackCell
		if _, err := t.repo.FindSettings(m.ID, &cells); err != nil {
			return s, err
		}
		if len(cells) == 0 {
			return s, nil
		}
		s.Soundtrack = make([]models.SoundtrackCell, soundtrackCells)
		for _, c := range cells {
			if c.Cell >= 0 && c.Cell < soundtrackCells {
				s.Soundtrack[c.Cell] = models.SoundtrackCell{LoopID: c.LoopID, Pan: c.Pan}
			}
		}

	case catalog.EditorSticker:
		var stickers []models.ModuleSticker
		if _, err := t.repo.FindSettings(m.ID, &stickers); err != nil {
			return s, err
		}
		for _, st := range stickers {
			s.Stickers = append(s.Stickers, models.StickerPlacement{
				ItemID:   st.ItemID,
				X:        st.X,
				Y:        st.Y,
				ScaleX:   st.ScaleX,
				ScaleY:   st.ScaleY,
				Rotation: st.Rotation,
				Depth:    st.Depth,
			})
		}

	case catalog.EditorUGC:
		var row models.ModuleUGCRef
		if ok, err := t.repo.FindSettings(m.ID, &row); err != nil || !ok {
			return s, err
		}
		s.UGC = &models.UGCSettings{Kind: row.Kind, Ref: row.Ref}

	case catalog.EditorFriendShare, catalog.EditorTrioPerformance, catalog.EditorGroupPerformance:
		friends, err := t.repo.ModuleFriends(m.ID)
		if err != nil {
			return s, err
		}
		for _, f := range friends {
			s.Friends = append(s.Friends, f.FriendID)
		}

	case catalog.EditorTrade, catalog.EditorNetworkerTrade, catalog.EditorLoopShoppe, catalog.EditorStickerShoppe:
		var row models.ModuleTrade
		if ok, err := t.repo.FindSettings(m.ID, &row); err != nil || !ok {
			return s, err
		}
		s.Trade = &models.TradeSettings{
			GiveItemID:    row.GiveItemID,
			GiveQty:       row.GiveQty,
			RequestItemID: row.RequestItemID,
			RequestQty:    row.RequestQty,
		}

	case catalog.EditorConcertArcade, catalog.EditorDeliveryArcade, catalog.EditorDestructoidArcade, catalog.EditorHopArcade:
		var row models.ModuleArcadeGame
		if ok, err := t.repo.FindSettings(m.ID, &row); err != nil || !ok {
			return s, err
		}
		s.Arcade = arcadeSettings(&row)
	}
	return s, nil
}

func arcadeSettings(g *models.ModuleArcadeGame) *models.ArcadeSettings {
	a := &models.ArcadeSettings{
		SkinIDs:          g.SkinIDs,
		ArrowBitmap:      uint64(g.ArrowBitmap),
		SoundtrackLoopID: g.SoundtrackLoopID,
		Timer:            g.Timer,
		Houses:           g.Houses,
		StartPositions:   g.StartPositions,
		Tiles:            g.Tiles,
		EnergyUsed:       g.EnergyUsed,
	}
	var width uint
	switch g.Kind {
	case models.ArcadeDestructoid:
		width = models.DestructoidCellBits
	case models.ArcadeHop:
		width = models.HopCellBits
	default:
		return a
	}
	for _, packed := range g.Rows() {
		a.Rows = append(a.Rows, models.UnpackCells(packed, width, models.CellsPerRow(width)))
	}
	return a
}

// SaveSettings заменяет настройки модуля. Настроенный модуль менять нельзя.
func (s *Service) SaveSettings(ctx context.Context, ownerID, moduleID int64, settings models.ModuleSettings) (*models.ModuleDetailsView, error) {
	var view *models.ModuleDetailsView
	err := s.run(ctx, "module_save_settings", func(t *txn) error {
		m, def, err := t.ownModule(ownerID, moduleID)
		if err != nil {
			return err
		}
		if m.IsSetup != nil && *m.IsSetup {
			return apperrors.ErrModuleAlreadySetup
		}
		rows, err := t.buildSettings(m, def, settings)
		if err != nil {
			return err
		}
		if err := t.repo.DeleteModuleSettings(m.ID); err != nil {
			return err
		}
		if err := t.repo.CreateSettings(rows...); err != nil {
			return err
		}
		t.out.touch(ownerID)
		view, err = t.moduleDetails(ownerID, m, def)
		return err
	})
	return view, err
}

// ModuleDetails модуль с настройками; владелец видит еще и текущий урожай
func (s *Service) ModuleDetails(ctx context.Context, viewerID, moduleID int64) (*models.ModuleDetailsView, error) {
	var view *models.ModuleDetailsView
	err := s.read(ctx, "module_details", func(t *txn) error {
		m, err := t.repo.Module(moduleID)
		if err != nil {
			return err
		}
		def, err := t.moduleDef(m)
		if err != nil {
			return err
		}
		view, err = t.moduleDetails(viewerID, m, def)
		return err
	})
	return view, err
}

func (t *txn) moduleDetails(viewerID int64, m *models.Module, def *catalog.Module) (*models.ModuleDetailsView, error) {
	settings, err := t.loadSettings(m, def)
	if err != nil {
		return nil, err
	}
	view := &models.ModuleDetailsView{
		Module:   moduleView(m),
		OwnerID:  m.OwnerID,
		Settings: settings,
	}
	if viewerID == m.OwnerID && def.Harvest != nil {
		y := CalcYield(m, def, t.now).Yield
		view.Yield = &y
	}
	return view, nil
}
