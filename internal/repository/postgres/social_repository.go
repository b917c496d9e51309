package postgres

import (
	"MLNCoreService/internal/models"
)

// FriendshipBetween возвращает строку отношения пары в любом направлении и блокирует ее.
// Отсутствие отношения возвращает nil без ошибки.
func (r *Repository) FriendshipBetween(a, b int64) (*models.Friendship, error) {
	var f models.Friendship
	res := r.forUpdate().Where("pair_key = ?", models.PairKey(a, b)).Limit(1).Find(&f)
	if res.Error != nil {
		return nil, translate(res.Error, "friendship %d/%d", a, b)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &f, nil
}

// Friendship возвращает отношение пары без блокировки (nil, если его нет)
func (r *Repository) Friendship(a, b int64) (*models.Friendship, error) {
	var f models.Friendship
	res := r.tx.Where("pair_key = ?", models.PairKey(a, b)).Limit(1).Find(&f)
	if res.Error != nil {
		return nil, translate(res.Error, "friendship %d/%d", a, b)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &f, nil
}

// CreateFriendship создает отношение; дубликат пары дает Conflict
func (r *Repository) CreateFriendship(f *models.Friendship) error {
	return translate(r.tx.Create(f).Error, "friendship %d/%d", f.FromUserID, f.ToUserID)
}

// SaveFriendship сохраняет отношение целиком
func (r *Repository) SaveFriendship(f *models.Friendship) error {
	return translate(r.tx.Save(f).Error, "friendship %d", f.ID)
}

// DeleteFriendship удаляет отношение
func (r *Repository) DeleteFriendship(id int64) error {
	return translate(r.tx.Delete(&models.Friendship{}, id).Error, "friendship %d", id)
}

// FriendIDs друзья пользователя в любом направлении по возрастанию ID
func (r *Repository) FriendIDs(userID int64) ([]int64, error) {
	var rows []models.Friendship
	err := r.tx.Where("(from_user_id = ? OR to_user_id = ?) AND status = ?", userID, userID, models.FriendshipFriend).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, translate(err, "friends of %d", userID)
	}
	ids := make([]int64, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].Other(userID))
	}
	return ids, nil
}

// CreateMessage сохраняет письмо и его вложения
func (r *Repository) CreateMessage(msg *models.Message, attachments []models.Attachment) error {
	if err := r.tx.Create(msg).Error; err != nil {
		return translate(err, "message")
	}
	for i := range attachments {
		attachments[i].MessageID = msg.ID
	}
	if len(attachments) == 0 {
		return nil
	}
	return translate(r.tx.Create(&attachments).Error, "attachments of message %d", msg.ID)
}

// MessageForUpdate получает письмо и блокирует его
func (r *Repository) MessageForUpdate(id int64) (*models.Message, error) {
	var msg models.Message
	if err := r.forUpdate().First(&msg, id).Error; err != nil {
		return nil, translate(err, "message %d", id)
	}
	return &msg, nil
}

// Message получает письмо без блокировки
func (r *Repository) Message(id int64) (*models.Message, error) {
	var msg models.Message
	if err := r.tx.First(&msg, id).Error; err != nil {
		return nil, translate(err, "message %d", id)
	}
	return &msg, nil
}

// SaveMessage сохраняет письмо
func (r *Repository) SaveMessage(msg *models.Message) error {
	return translate(r.tx.Save(msg).Error, "message %d", msg.ID)
}

// Attachments вложения письма по возрастанию предмета
func (r *Repository) Attachments(messageID int64) ([]models.Attachment, error) {
	var attachments []models.Attachment
	if err := r.tx.Where("message_id = ?", messageID).Order("item_id").Find(&attachments).Error; err != nil {
		return nil, translate(err, "attachments of message %d", messageID)
	}
	return attachments, nil
}

// AttachmentsFor вложения набора писем, сгруппированные по письму
func (r *Repository) AttachmentsFor(messageIDs []int64) (map[int64][]models.Attachment, error) {
	out := make(map[int64][]models.Attachment, len(messageIDs))
	if len(messageIDs) == 0 {
		return out, nil
	}
	var attachments []models.Attachment
	if err := r.tx.Where("message_id IN ?", messageIDs).Order("message_id, item_id").Find(&attachments).Error; err != nil {
		return nil, translate(err, "attachments")
	}
	for _, a := range attachments {
		out[a.MessageID] = append(out[a.MessageID], a)
	}
	return out, nil
}

// DeleteAttachments удаляет вложения письма
func (r *Repository) DeleteAttachments(messageID int64) error {
	return translate(r.tx.Where("message_id = ?", messageID).Delete(&models.Attachment{}).Error,
		"attachments of message %d", messageID)
}

// MergeAttachment прибавляет количество к вложению письма или создает его
func (r *Repository) MergeAttachment(messageID, itemID int64, qty int) error {
	a := models.Attachment{MessageID: messageID, ItemID: itemID, Qty: qty}
	err := r.tx.Clauses(mergeQty("attachments", "message_id", "item_id")).Create(&a).Error
	return translate(err, "attachment %d/%d", messageID, itemID)
}

// DeleteMessage удаляет письмо (вложения должны быть уже удалены)
func (r *Repository) DeleteMessage(id int64) error {
	return translate(r.tx.Delete(&models.Message{}, id).Error, "message %d", id)
}

// Inbox входящие письма по возрастанию ID
func (r *Repository) Inbox(recipientID int64) ([]models.Message, error) {
	var messages []models.Message
	if err := r.tx.Where("recipient_id = ?", recipientID).Order("id").Find(&messages).Error; err != nil {
		return nil, translate(err, "inbox of %d", recipientID)
	}
	return messages, nil
}

// InboxForUpdate входящие письма с блокировкой (консолидация)
func (r *Repository) InboxForUpdate(recipientID int64) ([]models.Message, error) {
	var messages []models.Message
	if err := r.forUpdate().Where("recipient_id = ?", recipientID).Order("id").Find(&messages).Error; err != nil {
		return nil, translate(err, "inbox of %d", recipientID)
	}
	return messages, nil
}

// HasMessageFrom проверяет, получал ли recipient письмо с телом body от sender
func (r *Repository) HasMessageFrom(recipientID, senderID, bodyID int64) (bool, error) {
	var count int64
	err := r.tx.Model(&models.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND body_id = ?", recipientID, senderID, bodyID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "messages of %d", recipientID)
	}
	return count > 0, nil
}
