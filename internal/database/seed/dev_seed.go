package seed

import (
	"context"
	"fmt"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/models"
	"MLNCoreService/internal/service"
	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
)

// UserCreator часть сервиса, через которую создаются начальные пользователи
type UserCreator interface {
	CreateUser(ctx context.Context, username string, opts service.NewUser) (*models.User, error)
	Catalog() *catalog.Catalog
}

// Seeder заполняет базу networker-ами из каталога и пользователем для разработки
type Seeder struct {
	users  UserCreator
	logger *zap.Logger
}

// NewSeeder создает новый объект для заполнения начальными данными
func NewSeeder(users UserCreator, logger *zap.Logger) *Seeder {
	return &Seeder{
		users:  users,
		logger: logger,
	}
}

// SeedNetworkers создает networker-ов каталога, которых еще нет в базе
func (s *Seeder) SeedNetworkers(ctx context.Context) error {
	for _, n := range s.users.Catalog().Networkers() {
		err := s.create(ctx, n.Username, service.NewUser{
			Networker: true,
			Secret:    n.Secret,
			Pseudo:    n.Pseudo,
			Rank:      n.Rank,
			Avatar:    n.Avatar,
		})
		if err != nil {
			return fmt.Errorf("не удалось создать networker-а %s: %w", n.Username, err)
		}
	}
	return nil
}

// SeedDevUser создает обычного пользователя для разработки; пустое имя пропускается
func (s *Seeder) SeedDevUser(ctx context.Context, username string) error {
	if username == "" {
		s.logger.Debug("Dev user not configured, skipping")
		return nil
	}
	if err := s.create(ctx, username, service.NewUser{}); err != nil {
		return fmt.Errorf("не удалось создать пользователя %s: %w", username, err)
	}
	return nil
}

// SeedAll заполняет все начальные данные
func (s *Seeder) SeedAll(ctx context.Context, devUser string) error {
	if err := s.SeedNetworkers(ctx); err != nil {
		return err
	}
	return s.SeedDevUser(ctx, devUser)
}

// create повторный запуск не ошибка: существующий пользователь пропускается
func (s *Seeder) create(ctx context.Context, username string, opts service.NewUser) error {
	u, err := s.users.CreateUser(ctx, username, opts)
	if apperrors.KindOf(err) == apperrors.KindConflict {
		s.logger.Debug("Пользователь уже существует", zap.String("username", username))
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("Seeded user",
		zap.String("username", username),
		zap.Int64("user_id", u.ID),
		zap.Bool("networker", opts.Networker))
	return nil
}
