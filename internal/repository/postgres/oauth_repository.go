package postgres

import (
	"MLNCoreService/internal/models"

	"gorm.io/gorm"
)

// CreateClient регистрирует OAuth-клиента
func (r *Repository) CreateClient(client *models.OAuthClient) error {
	return translate(r.tx.Create(client).Error, "client %q", client.Name)
}

// ClientByID получает клиента по ID
func (r *Repository) ClientByID(id int64) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := r.tx.First(&client, id).Error; err != nil {
		return nil, translate(err, "client %d", id)
	}
	return &client, nil
}

// ClientByAPIToken получает клиента по секрету
func (r *Repository) ClientByAPIToken(apiToken string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := r.tx.Where("api_token = ?", apiToken).First(&client).Error; err != nil {
		return nil, translate(err, "client")
	}
	return &client, nil
}

// CreateAuthCode сохраняет код авторизации
func (r *Repository) CreateAuthCode(code *models.AuthCode) error {
	return translate(r.tx.Create(code).Error, "auth code")
}

// AuthCodeForUpdate получает код и блокирует его (код одноразовый)
func (r *Repository) AuthCodeForUpdate(code string) (*models.AuthCode, error) {
	var ac models.AuthCode
	if err := r.forUpdate().Where("code = ?", code).First(&ac).Error; err != nil {
		return nil, translate(err, "auth code")
	}
	return &ac, nil
}

// DeleteAuthCode удаляет код
func (r *Repository) DeleteAuthCode(id int64) error {
	return translate(r.tx.Delete(&models.AuthCode{}, id).Error, "auth code %d", id)
}

// CreateToken сохраняет токен доступа
func (r *Repository) CreateToken(token *models.Token) error {
	return translate(r.tx.Create(token).Error, "token")
}

// TokenByAccess получает токен по значению
func (r *Repository) TokenByAccess(access string) (*models.Token, error) {
	var token models.Token
	if err := r.tx.Where("access_token = ?", access).First(&token).Error; err != nil {
		return nil, translate(err, "token")
	}
	return &token, nil
}

// Token получает токен по ID
func (r *Repository) Token(id int64) (*models.Token, error) {
	var token models.Token
	if err := r.tx.First(&token, id).Error; err != nil {
		return nil, translate(err, "token %d", id)
	}
	return &token, nil
}

// CreateWebhook регистрирует webhook
func (r *Repository) CreateWebhook(hook *models.Webhook) error {
	return translate(r.tx.Create(hook).Error, "webhook")
}

// DeleteWebhook удаляет webhook клиента; чужой webhook считается отсутствующим
func (r *Repository) DeleteWebhook(clientID, id int64) error {
	res := r.tx.Where("id = ? AND client_id = ?", id, clientID).Delete(&models.Webhook{})
	if res.Error != nil {
		return translate(res.Error, "webhook %d", id)
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "webhook %d", id)
	}
	return nil
}

// Webhooks webhook-и клиента
func (r *Repository) Webhooks(clientID int64) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := r.tx.Where("client_id = ?", clientID).Order("id").Find(&hooks).Error; err != nil {
		return nil, translate(err, "webhooks of client %d", clientID)
	}
	return hooks, nil
}

// WebhooksFor подписки на событие пользователя
func (r *Repository) WebhooksFor(ownerID int64, event string) ([]models.Webhook, error) {
	var hooks []models.Webhook
	if err := r.tx.Where("owner_user_id = ? AND event_type = ?", ownerID, event).Order("id").Find(&hooks).Error; err != nil {
		return nil, translate(err, "webhooks of %d", ownerID)
	}
	return hooks, nil
}

// CreateIntegrationMessage регистрирует награду клиента
func (r *Repository) CreateIntegrationMessage(msg *models.IntegrationMessage) error {
	return translate(r.tx.Create(msg).Error, "integration award %d", msg.Award)
}

// IntegrationMessage награда клиента по номеру
func (r *Repository) IntegrationMessage(clientID int64, award int) (*models.IntegrationMessage, error) {
	var msg models.IntegrationMessage
	if err := r.tx.Where("client_id = ? AND award = ?", clientID, award).First(&msg).Error; err != nil {
		return nil, translate(err, "integration award %d", award)
	}
	return &msg, nil
}
