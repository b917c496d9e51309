package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// Время жизни одноразового кода авторизации
const authCodeTTL = 10 * time.Minute

// Длина случайных токенов в байтах до кодирования
const tokenBytes = 32

var webhookEvents = map[string]bool{
	models.EventMessages:    true,
	models.EventFriendships: true,
	models.EventRank:        true,
	models.EventBadge:       true,
}

// newToken URL-безопасный случайный токен
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AuthContext результат проверки bearer-токена
type AuthContext struct {
	Client  *models.OAuthClient
	UserID  int64
	TokenID int64
}

// RegisterClient регистрирует клиента интеграции и выдает ему API-токен
func (s *Service) RegisterClient(ctx context.Context, name, redirectURL string) (*models.OAuthClient, error) {
	if name == "" {
		return nil, apperrors.Validation("client name required")
	}
	if err := validateURL(redirectURL); err != nil {
		return nil, err
	}
	apiToken, err := newToken()
	if err != nil {
		return nil, err
	}

	client := &models.OAuthClient{Name: name, APIToken: apiToken, RedirectURL: redirectURL}
	err = s.run(ctx, "oauth_register_client", func(t *txn) error {
		client.CreatedAt = t.now
		return t.repo.CreateClient(client)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("OAuth client registered", zap.Int64("client_id", client.ID), zap.String("name", name))
	return client, nil
}

// IssueAuthCode выдает одноразовый код после входа пользователя и возвращает адрес
// перенаправления клиента с session_id и auth_code
func (s *Service) IssueAuthCode(ctx context.Context, clientID, userID int64, sessionID string) (string, error) {
	if sessionID == "" {
		return "", apperrors.Validation("session id required")
	}
	code, err := newToken()
	if err != nil {
		return "", err
	}

	var redirect string
	err = s.run(ctx, "oauth_issue_code", func(t *txn) error {
		client, err := t.repo.ClientByID(clientID)
		if err != nil {
			return err
		}
		if _, err := t.repo.UserByID(userID); err != nil {
			return err
		}
		if err := t.repo.CreateAuthCode(&models.AuthCode{
			ClientID:    clientID,
			UserID:      userID,
			Code:        code,
			SessionID:   sessionID,
			GeneratedAt: t.now,
		}); err != nil {
			return err
		}

		u, err := url.Parse(client.RedirectURL)
		if err != nil {
			return apperrors.Internal("stored redirect url is invalid", err)
		}
		q := u.Query()
		q.Set("session_id", sessionID)
		q.Set("auth_code", code)
		u.RawQuery = q.Encode()
		redirect = u.String()
		return nil
	})
	return redirect, err
}

// ExchangeAuthCode обменивает код на токен доступа. Код одноразовый и живет десять минут.
func (s *Service) ExchangeAuthCode(ctx context.Context, apiToken, code string) (*models.Token, error) {
	access, err := newToken()
	if err != nil {
		return nil, err
	}

	var token *models.Token
	err = s.run(ctx, "oauth_exchange_code", func(t *txn) error {
		client, err := t.repo.ClientByAPIToken(apiToken)
		if apperrors.IsNotFound(err) {
			return apperrors.ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		ac, err := t.repo.AuthCodeForUpdate(code)
		if apperrors.IsNotFound(err) {
			return apperrors.ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		if ac.ClientID != client.ID {
			return apperrors.ErrForbidden
		}
		if t.now.Sub(ac.GeneratedAt) > authCodeTTL {
			return apperrors.ErrUnauthenticated
		}
		if err := t.repo.DeleteAuthCode(ac.ID); err != nil {
			return err
		}

		token = &models.Token{ClientID: client.ID, UserID: ac.UserID, AccessToken: access, CreatedAt: t.now}
		return t.repo.CreateToken(token)
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Authenticate проверяет пару bearer-токен и API-токен клиента
func (s *Service) Authenticate(ctx context.Context, bearer, apiToken string) (*AuthContext, error) {
	if bearer == "" || apiToken == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	var auth *AuthContext
	err := s.read(ctx, "oauth_authenticate", func(t *txn) error {
		token, err := t.repo.TokenByAccess(bearer)
		if apperrors.IsNotFound(err) {
			return apperrors.ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		client, err := t.repo.ClientByID(token.ClientID)
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(client.APIToken), []byte(apiToken)) != 1 {
			return apperrors.ErrForbidden
		}
		auth = &AuthContext{Client: client, UserID: token.UserID, TokenID: token.ID}
		return nil
	})
	return auth, err
}

// RegisterWebhook подписывает клиента на события пользователя, от имени которого выдан токен
func (s *Service) RegisterWebhook(ctx context.Context, auth *AuthContext, eventType, hookURL, secret string) (*models.Webhook, error) {
	if !webhookEvents[eventType] {
		return nil, apperrors.Validation("unknown event type %q", eventType)
	}
	if err := validateURL(hookURL); err != nil {
		return nil, err
	}
	if secret == "" {
		secret = auth.Client.APIToken
	}

	tokenID := auth.TokenID
	hook := &models.Webhook{
		ClientID:    auth.Client.ID,
		OwnerUserID: auth.UserID,
		EventType:   eventType,
		URL:         hookURL,
		Secret:      secret,
		TokenID:     &tokenID,
	}
	err := s.run(ctx, "webhook_register", func(t *txn) error {
		hook.CreatedAt = t.now
		return t.repo.CreateWebhook(hook)
	})
	if err != nil {
		return nil, err
	}
	return hook, nil
}

// DeleteWebhook удаляет webhook клиента
func (s *Service) DeleteWebhook(ctx context.Context, clientID, webhookID int64) error {
	return s.run(ctx, "webhook_delete", func(t *txn) error {
		return t.repo.DeleteWebhook(clientID, webhookID)
	})
}

// ListWebhooks webhook-и клиента
func (s *Service) ListWebhooks(ctx context.Context, clientID int64) ([]models.Webhook, error) {
	var hooks []models.Webhook
	err := s.read(ctx, "webhook_list", func(t *txn) error {
		var err error
		hooks, err = t.repo.Webhooks(clientID)
		return err
	})
	return hooks, err
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.Validation("invalid url %q", raw)
	}
	return nil
}
