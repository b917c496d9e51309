package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"MLNCoreService/pkg/apperrors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store выполняет операции ядра как единицы работы над базой данных
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore создает новый экземпляр Store
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Transaction выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
func (s *Store) Transaction(ctx context.Context, operation string, fn func(repo *Repository) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{tx: tx})
	})
	if err != nil && !apperrors.IsUserError(err) {
		s.logger.Error("Database operation failed",
			zap.String("operation", operation),
			zap.Error(err))
	}
	return err
}

// Read выполняет fn в транзакции только для чтения. На Postgres это снимок
// REPEATABLE READ: все запросы операции видят одно зафиксированное состояние.
func (s *Store) Read(ctx context.Context, operation string, fn func(repo *Repository) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{tx: tx})
	}, s.readOptions())
	if err != nil && !apperrors.IsUserError(err) {
		s.logger.Error("Database read failed",
			zap.String("operation", operation),
			zap.Error(err))
	}
	return err
}

// readOptions уровень изоляции чтения. SQLite с одним соединением и так сериализует
// транзакции и уровней изоляции не различает.
func (s *Store) readOptions() *sql.TxOptions {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

// Repository набор запросов, привязанных к текущей транзакции
type Repository struct {
	tx *gorm.DB
}

// NewRepository привязывает репозиторий к произвольному соединению или транзакции
func NewRepository(tx *gorm.DB) *Repository {
	return &Repository{tx: tx}
}

// Savepoint выполняет fn во вложенной транзакции: ошибка откатывает только ее изменения
func (r *Repository) Savepoint(fn func(repo *Repository) error) error {
	return r.tx.Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{tx: tx})
	})
}

// forUpdate блокирует выбранные строки до конца транзакции
func (r *Repository) forUpdate() *gorm.DB {
	return r.tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// translate приводит ошибки gorm к таксономии ядра
func translate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Conflict(what+" already exists", err)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
