package service

import (
	"context"

	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// RegisterAward регистрирует награду клиента: шаблон письма и networker-отправитель
func (s *Service) RegisterAward(ctx context.Context, clientID int64, award int, templateID, networkerID int64) (*models.IntegrationMessage, error) {
	if _, ok := s.catalog.Template(templateID); !ok {
		return nil, apperrors.Validation("unknown message template %d", templateID)
	}

	msg := &models.IntegrationMessage{
		ClientID:    clientID,
		Award:       award,
		TemplateID:  templateID,
		NetworkerID: networkerID,
	}
	err := s.run(ctx, "integration_register_award", func(t *txn) error {
		if _, err := t.repo.ClientByID(clientID); err != nil {
			return err
		}
		networker, err := t.isNetworker(networkerID)
		if err != nil {
			return err
		}
		if !networker {
			return apperrors.Validation("user %d is not a networker", networkerID)
		}
		return t.repo.CreateIntegrationMessage(msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GrantAward отправляет пользователю письмо награды от имени networker-а
func (s *Service) GrantAward(ctx context.Context, clientID, userID int64, award int) (*models.MessageView, error) {
	var view *models.MessageView
	err := s.run(ctx, "integration_grant_award", func(t *txn) error {
		im, err := t.repo.IntegrationMessage(clientID, award)
		if err != nil {
			return err
		}
		msg, err := t.sendTemplate(im.NetworkerID, userID, im.TemplateID)
		if err != nil {
			return err
		}
		atts, err := t.repo.Attachments(msg.ID)
		if err != nil {
			return err
		}
		view, err = t.messageView(msg, atts)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Integration award granted",
		zap.Int64("client_id", clientID),
		zap.Int64("user_id", userID),
		zap.Int("award", award))
	return view, nil
}
