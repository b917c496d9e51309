package postgres

import (
	"MLNCoreService/internal/models"
)

// variantTables дочерние таблицы модуля, удаляемые каскадно
var variantTables = []any{
	&models.ModuleAppearance{},
	&models.ModuleText{},
	&models.ModuleRocketTheme{},
	&models.ModuleSoundtrackCell{},
	&models.ModuleSticker{},
	&models.ModuleUGCRef{},
	&models.ModuleFriend{},
	&models.ModuleTrade{},
	&models.ModuleArcadeGame{},
}

// Module получает модуль без блокировки
func (r *Repository) Module(id int64) (*models.Module, error) {
	var module models.Module
	if err := r.tx.First(&module, id).Error; err != nil {
		return nil, translate(err, "module %d", id)
	}
	return &module, nil
}

// ModuleForUpdate получает модуль и блокирует его строку
func (r *Repository) ModuleForUpdate(id int64) (*models.Module, error) {
	var module models.Module
	if err := r.forUpdate().First(&module, id).Error; err != nil {
		return nil, translate(err, "module %d", id)
	}
	return &module, nil
}

// ModulesByOwner возвращает модули владельца по возрастанию ID
func (r *Repository) ModulesByOwner(ownerID int64) ([]models.Module, error) {
	var modules []models.Module
	if err := r.tx.Where("owner_id = ?", ownerID).Order("id").Find(&modules).Error; err != nil {
		return nil, translate(err, "modules of %d", ownerID)
	}
	return modules, nil
}

// ModulesByOwnerForUpdate блокирует все модули владельца (сохранение раскладки)
func (r *Repository) ModulesByOwnerForUpdate(ownerID int64) ([]models.Module, error) {
	var modules []models.Module
	if err := r.forUpdate().Where("owner_id = ?", ownerID).Order("id").Find(&modules).Error; err != nil {
		return nil, translate(err, "modules of %d", ownerID)
	}
	return modules, nil
}

// ModulesByOwnerAndItem модули владельца с заданным предметом
func (r *Repository) ModulesByOwnerAndItem(ownerID, itemID int64) ([]models.Module, error) {
	var modules []models.Module
	if err := r.tx.Where("owner_id = ? AND item_id = ?", ownerID, itemID).Order("id").Find(&modules).Error; err != nil {
		return nil, translate(err, "modules of %d", ownerID)
	}
	return modules, nil
}

// CreateModule создает экземпляр модуля
func (r *Repository) CreateModule(module *models.Module) error {
	return translate(r.tx.Create(module).Error, "module position of %d", module.OwnerID)
}

// SaveModule сохраняет модуль целиком
func (r *Repository) SaveModule(module *models.Module) error {
	return translate(r.tx.Save(module).Error, "module %d", module.ID)
}

// ClearModulePositions снимает модули со страницы, освобождая позиции перед перестановкой
func (r *Repository) ClearModulePositions(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.tx.Model(&models.Module{}).Where("id IN ?", ids).
		Updates(map[string]any{"pos_x": nil, "pos_y": nil}).Error
	return translate(err, "module positions")
}

// DeleteModule удаляет модуль и его дочерние строки
func (r *Repository) DeleteModule(id int64) error {
	if err := r.DeleteModuleSettings(id); err != nil {
		return err
	}
	return translate(r.tx.Delete(&models.Module{}, id).Error, "module %d", id)
}

// DeleteModuleSettings удаляет все строки настроек модуля
func (r *Repository) DeleteModuleSettings(moduleID int64) error {
	for _, table := range variantTables {
		if err := r.tx.Where("module_id = ?", moduleID).Delete(table).Error; err != nil {
			return translate(err, "settings of module %d", moduleID)
		}
	}
	return nil
}

// CreateSettings сохраняет строки настроек модуля
func (r *Repository) CreateSettings(rows ...any) error {
	for _, row := range rows {
		if err := r.tx.Create(row).Error; err != nil {
			return translate(err, "module settings")
		}
	}
	return nil
}

// FindSettings загружает строки настроек модуля в dest (указатель на структуру или срез)
func (r *Repository) FindSettings(moduleID int64, dest any) (bool, error) {
	res := r.tx.Where("module_id = ?", moduleID).Find(dest)
	if res.Error != nil {
		return false, translate(res.Error, "settings of module %d", moduleID)
	}
	return res.RowsAffected > 0, nil
}

// ModuleTrade условия обмена модуля
func (r *Repository) ModuleTrade(moduleID int64) (*models.ModuleTrade, error) {
	var trade models.ModuleTrade
	if err := r.tx.Where("module_id = ?", moduleID).First(&trade).Error; err != nil {
		return nil, translate(err, "trade of module %d", moduleID)
	}
	return &trade, nil
}

// ModuleFriends друзья модуля по порядку слотов
func (r *Repository) ModuleFriends(moduleID int64) ([]models.ModuleFriend, error) {
	var friends []models.ModuleFriend
	if err := r.tx.Where("module_id = ?", moduleID).Order("slot").Find(&friends).Error; err != nil {
		return nil, translate(err, "friends of module %d", moduleID)
	}
	return friends, nil
}
