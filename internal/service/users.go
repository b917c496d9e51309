package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"MLNCoreService/internal/models"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// Аватар человека по умолчанию
const defaultAvatar = "0#0,0,0,0,0,0,0,0,0,0,0,0,0,0"

const maxUsernameLength = 64

// NewUser параметры создаваемого пользователя
type NewUser struct {
	Networker bool
	Secret    bool
	Pseudo    bool
	Rank      int
	// Avatar пустой означает аватар по умолчанию
	Avatar string
}

// CreateUser создает пользователя с профилем и полным запасом голосов
func (s *Service) CreateUser(ctx context.Context, username string, opts NewUser) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, apperrors.Validation("invalid username %q", username)
	}
	if (opts.Secret || opts.Pseudo) && !opts.Networker {
		return nil, apperrors.Validation("secret and pseudo flags require a networker")
	}

	avatar := opts.Avatar
	if avatar == "" {
		avatar = defaultAvatar
	}
	if err := ValidateAvatar(avatar, opts.Networker); err != nil {
		return nil, err
	}

	rank := min(max(opts.Rank, 0), models.MaxRank)
	user := &models.User{Username: username}
	err := s.run(ctx, "user_create", func(t *txn) error {
		profile := &models.Profile{
			IsNetworker:        opts.Networker,
			IsSecret:           opts.Secret,
			IsPseudo:           opts.Pseudo,
			Rank:               rank,
			AvailableVotes:     models.MaxVotes(rank),
			LastVoteUpdateTime: t.now,
			Avatar:             avatar,
		}
		return t.repo.CreateUser(user, profile)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("username", username),
		zap.Bool("networker", opts.Networker))
	return user, nil
}

// User получает пользователя по ID
func (s *Service) User(ctx context.Context, userID int64) (*models.User, error) {
	var user *models.User
	err := s.read(ctx, "user_get", func(t *txn) error {
		var err error
		user, err = t.repo.UserByID(userID)
		return err
	})
	return user, err
}

// UserByName получает пользователя по имени
func (s *Service) UserByName(ctx context.Context, username string) (*models.User, error) {
	var user *models.User
	err := s.read(ctx, "user_get_by_name", func(t *txn) error {
		var err error
		user, err = t.repo.UserByName(username)
		return err
	})
	return user, err
}

// DeleteUser удаляет пользователя со всем, что ему принадлежит.
// Страницы бывших друзей тоже сбрасываются из кэша.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	err := s.run(ctx, "user_delete", func(t *txn) error {
		friends, err := t.repo.FriendIDs(userID)
		if err != nil {
			return err
		}
		if err := t.repo.DeleteUser(userID); err != nil {
			return err
		}
		t.out.touch(userID)
		t.out.touch(friends...)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.Int64("user_id", userID))
	return nil
}
