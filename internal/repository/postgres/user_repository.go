package postgres

import (
	"MLNCoreService/internal/models"

	"gorm.io/gorm"
)

// CreateUser создает пользователя вместе с профилем
func (r *Repository) CreateUser(user *models.User, profile *models.Profile) error {
	if err := r.tx.Create(user).Error; err != nil {
		return translate(err, "user %q", user.Username)
	}
	profile.UserID = user.ID
	if err := r.tx.Create(profile).Error; err != nil {
		return translate(err, "profile %d", user.ID)
	}
	return nil
}

// UserByID получает пользователя по ID
func (r *Repository) UserByID(id int64) (*models.User, error) {
	var user models.User
	if err := r.tx.First(&user, id).Error; err != nil {
		return nil, translate(err, "user %d", id)
	}
	return &user, nil
}

// UserByName получает пользователя по имени
func (r *Repository) UserByName(username string) (*models.User, error) {
	var user models.User
	if err := r.tx.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err, "user %q", username)
	}
	return &user, nil
}

// Usernames возвращает имена пользователей по списку ID
func (r *Repository) Usernames(ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []models.User
	if err := r.tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err, "users")
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

// Profile получает профиль без блокировки
func (r *Repository) Profile(userID int64) (*models.Profile, error) {
	var profile models.Profile
	if err := r.tx.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, translate(err, "profile %d", userID)
	}
	return &profile, nil
}

// ProfileForUpdate получает профиль и блокирует его до конца транзакции
func (r *Repository) ProfileForUpdate(userID int64) (*models.Profile, error) {
	var profile models.Profile
	if err := r.forUpdate().Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, translate(err, "profile %d", userID)
	}
	return &profile, nil
}

// Profiles возвращает профили по списку ID
func (r *Repository) Profiles(ids []int64) (map[int64]models.Profile, error) {
	out := make(map[int64]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	if err := r.tx.Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, translate(err, "profiles")
	}
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out, nil
}

// SaveProfile сохраняет профиль целиком
func (r *Repository) SaveProfile(profile *models.Profile) error {
	return translate(r.tx.Save(profile).Error, "profile %d", profile.UserID)
}

// AboutMe возвращает ответы анкеты в порядке позиций
func (r *Repository) AboutMe(userID int64) ([]models.AboutMeAnswer, error) {
	var answers []models.AboutMeAnswer
	if err := r.tx.Where("user_id = ?", userID).Order("position").Find(&answers).Error; err != nil {
		return nil, translate(err, "about me %d", userID)
	}
	return answers, nil
}

// ReplaceAboutMe заменяет анкету пользователя
func (r *Repository) ReplaceAboutMe(userID int64, answers []models.AboutMeAnswer) error {
	if err := r.tx.Where("user_id = ?", userID).Delete(&models.AboutMeAnswer{}).Error; err != nil {
		return translate(err, "about me %d", userID)
	}
	if len(answers) == 0 {
		return nil
	}
	return translate(r.tx.Create(&answers).Error, "about me %d", userID)
}

// DeleteUser удаляет пользователя и все принадлежащие ему строки
func (r *Repository) DeleteUser(userID int64) error {
	var moduleIDs []int64
	if err := r.tx.Model(&models.Module{}).Where("owner_id = ?", userID).Pluck("id", &moduleIDs).Error; err != nil {
		return translate(err, "modules of %d", userID)
	}
	for _, id := range moduleIDs {
		if err := r.DeleteModule(id); err != nil {
			return err
		}
	}

	var messageIDs []int64
	if err := r.tx.Model(&models.Message{}).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Pluck("id", &messageIDs).Error; err != nil {
		return translate(err, "messages of %d", userID)
	}
	if len(messageIDs) > 0 {
		if err := r.tx.Where("message_id IN ?", messageIDs).Delete(&models.Attachment{}).Error; err != nil {
			return translate(err, "attachments of %d", userID)
		}
		if err := r.tx.Where("id IN ?", messageIDs).Delete(&models.Message{}).Error; err != nil {
			return translate(err, "messages of %d", userID)
		}
	}

	cascades := []struct {
		model any
		where string
	}{
		{&models.ModuleFriend{}, "friend_id = ?"},
		{&models.InventoryStack{}, "owner_id = ?"},
		{&models.AboutMeAnswer{}, "user_id = ?"},
		{&models.AuthCode{}, "user_id = ?"},
		{&models.Token{}, "user_id = ?"},
		{&models.Webhook{}, "owner_user_id = ?"},
		{&models.Profile{}, "user_id = ?"},
	}
	if err := r.tx.Where("from_user_id = ? OR to_user_id = ?", userID, userID).Delete(&models.Friendship{}).Error; err != nil {
		return translate(err, "friendships of %d", userID)
	}
	for _, c := range cascades {
		if err := r.tx.Where(c.where, userID).Delete(c.model).Error; err != nil {
			return translate(err, "cascade of %d", userID)
		}
	}

	res := r.tx.Delete(&models.User{}, userID)
	if res.Error != nil {
		return translate(res.Error, "user %d", userID)
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "user %d", userID)
	}
	return nil
}
