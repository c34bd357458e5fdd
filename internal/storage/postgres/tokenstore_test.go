package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

var tokenColumns = []string{"user_id", "device_token", "platform", "created_at", "updated_at"}

// arrayConverter lets []string arguments through, as the pgx driver accepts
// them for text[] parameters.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestTokenStore_Upsert(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewTokenStore(db)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	t.Run("Same pair twice keeps one registration with the latest platform", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(upsertTokenQuery)).
			WithArgs("user-1", "tok-1", "android").
			WillReturnRows(sqlmock.NewRows(tokenColumns).AddRow("user-1", "tok-1", "android", created, created))
		mock.ExpectQuery(regexp.QuoteMeta(upsertTokenQuery)).
			WithArgs("user-1", "tok-1", "ios").
			WillReturnRows(sqlmock.NewRows(tokenColumns).AddRow("user-1", "tok-1", "ios", created, updated))

		first, err := store.Upsert(ctx, "user-1", "tok-1", notification.PlatformAndroid)
		require.NoError(t, err)
		second, err := store.Upsert(ctx, "user-1", "tok-1", notification.PlatformIOS)
		require.NoError(t, err)

		assert.Equal(t, notification.PlatformAndroid, first.Platform)
		assert.Equal(t, notification.PlatformIOS, second.Platform)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Storage error is wrapped", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(upsertTokenQuery)).
			WithArgs("user-1", "tok-1", "ios").
			WillReturnError(sql.ErrConnDone)

		_, err := store.Upsert(ctx, "user-1", "tok-1", notification.PlatformIOS)

		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTokenStore_Find(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewTokenStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("FindByUser returns an empty slice when nothing matches", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(findTokensByUserQuery)).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(tokenColumns))

		regs, err := store.FindByUser(ctx, "ghost")

		require.NoError(t, err)
		assert.NotNil(t, regs)
		assert.Empty(t, regs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FindByUsers sends the ids as one array parameter", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(findTokensByUsersQuery)).
			WithArgs([]string{"u1", "u2"}).
			WillReturnRows(sqlmock.NewRows(tokenColumns).
				AddRow("u1", "t1", "ios", now, now).
				AddRow("u2", "t2", "android", now, now))

		regs, err := store.FindByUsers(ctx, []string{"u1", "u2"})

		require.NoError(t, err)
		require.Len(t, regs, 2)
		assert.Equal(t, "t2", regs[1].DeviceToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FindByUsers with no ids does not query", func(t *testing.T) {
		regs, err := store.FindByUsers(ctx, []string{})

		require.NoError(t, err)
		assert.Empty(t, regs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("All scans every row", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(allTokensQuery)).
			WillReturnRows(sqlmock.NewRows(tokenColumns).
				AddRow("u1", "t1", "ios", now, now).
				AddRow("u1", "t2", "android", now, now).
				AddRow("u3", "t3", "android", now, now))

		regs, err := store.All(ctx)

		require.NoError(t, err)
		assert.Len(t, regs, 3)
		assert.Equal(t, notification.PlatformIOS, regs[0].Platform)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTokenStore_Delete(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewTokenStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Deleting an existing pair returns it", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(deleteTokenQuery)).
			WithArgs("u1", "t1").
			WillReturnRows(sqlmock.NewRows(tokenColumns).AddRow("u1", "t1", "ios", now, now))

		reg, err := store.DeleteOne(ctx, "u1", "t1")

		require.NoError(t, err)
		require.NotNil(t, reg)
		assert.Equal(t, "t1", reg.DeviceToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Deleting a nonexistent pair returns nil, not an error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(deleteTokenQuery)).
			WithArgs("u1", "missing").
			WillReturnRows(sqlmock.NewRows(tokenColumns))

		reg, err := store.DeleteOne(ctx, "u1", "missing")

		require.NoError(t, err)
		assert.Nil(t, reg)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteAllForUser succeeds when nothing is removed", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(deleteUserTokensQuery)).
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, store.DeleteAllForUser(ctx, "ghost"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
