package postgres

import (
	"errors"
	"testing"

	"MLNCoreService/pkg/apperrors"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB подключает gorm с диалектом Postgres к sqlmock
func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := openMockGorm(t)
	return NewRepository(db), mock
}

func openMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 mockDB,
		PreferSimpleProtocol: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		t.Fatalf("Failed to open gorm: %v", err)
	}

	return db, mock
}

func TestRemoveItems_SQL(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "exact quantity deletes the row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM "inventory_stacks" WHERE owner_id = \$1 AND item_id = \$2 AND qty = \$3`).
					WithArgs(1, 1001, 3).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "larger stack is decremented",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM "inventory_stacks"`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`UPDATE "inventory_stacks" SET "qty"=qty - \$1 WHERE owner_id = \$2 AND item_id = \$3 AND qty > \$4`).
					WithArgs(3, 1, 1001, 3).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "shortage leaves state unchanged",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM "inventory_stacks"`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`UPDATE "inventory_stacks"`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: apperrors.ErrInsufficientItems,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupMockDB(t)
			tt.setup(mock)

			err := repo.RemoveItems(1, 1001, 3)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestAddItems_SQL(t *testing.T) {
	t.Run("single upsert merges on owner and item", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectQuery(`INSERT INTO "inventory_stacks" \("owner_id","item_id","qty"\) VALUES \(\$1,\$2,\$3\) ` +
			`ON CONFLICT \("owner_id","item_id"\) DO UPDATE SET "qty"=inventory_stacks.qty \+ excluded.qty`).
			WithArgs(1, 1001, 2).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

		if err := repo.AddItems(1, 1001, 2); err != nil {
			t.Fatalf("AddItems failed: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
	})

	t.Run("non-positive quantity is rejected without SQL", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		if err := repo.AddItems(1, 1001, 0); apperrors.KindOf(err) != apperrors.KindValidation {
			t.Errorf("Expected validation error, got %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unexpected SQL: %v", err)
		}
	})
}

func TestFriendshipBetween_LocksByPairKey(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "friendships" WHERE pair_key = \$1 LIMIT \$2 FOR UPDATE`).
		WithArgs("3:7", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "from_user_id", "to_user_id", "pair_key", "status"}))

	f, err := repo.FriendshipBetween(7, 3)
	if err != nil || f != nil {
		t.Errorf("Expected no relation, got %+v, %v", f, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestMergeAttachment_SQL(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery(`INSERT INTO "attachments" \("message_id","item_id","qty"\) VALUES \(\$1,\$2,\$3\) ` +
		`ON CONFLICT \("message_id","item_id"\) DO UPDATE SET "qty"=attachments.qty \+ excluded.qty`).
		WithArgs(7, 1003, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	if err := repo.MergeAttachment(7, 1003, 5); err != nil {
		t.Fatalf("MergeAttachment failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
