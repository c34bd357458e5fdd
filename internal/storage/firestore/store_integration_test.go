//go:build integration

package firestore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-push-dispatch-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-push-dispatch-service/pkg/notification"
)

func setupClient(t *testing.T) (context.Context, *firestore.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	projectID := "test-push-dispatch"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return ctx, client
}

func TestTokenStore_Integration(t *testing.T) {
	ctx, client := setupClient(t)
	store := fs.NewTokenStore(client)

	t.Run("Upsert is idempotent on the pair and keeps created_at", func(t *testing.T) {
		first, err := store.Upsert(ctx, "user-a", "tok-1", notification.PlatformAndroid)
		require.NoError(t, err)
		second, err := store.Upsert(ctx, "user-a", "tok-1", notification.PlatformIOS)
		require.NoError(t, err)

		assert.Equal(t, notification.PlatformIOS, second.Platform)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

		regs, err := store.FindByUser(ctx, "user-a")
		require.NoError(t, err)
		require.Len(t, regs, 1)
		assert.Equal(t, notification.PlatformIOS, regs[0].Platform)
	})

	t.Run("Same token under two users is two registrations", func(t *testing.T) {
		_, err := store.Upsert(ctx, "user-b", "shared", notification.PlatformIOS)
		require.NoError(t, err)
		_, err = store.Upsert(ctx, "user-c", "shared", notification.PlatformIOS)
		require.NoError(t, err)

		regs, err := store.FindByUsers(ctx, []string{"user-b", "user-c"})
		require.NoError(t, err)
		assert.Len(t, regs, 2)
	})

	t.Run("DeleteOne returns the removed pair and nil when absent", func(t *testing.T) {
		removed, err := store.DeleteOne(ctx, "user-b", "shared")
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, "user-b", removed.UserID)

		again, err := store.DeleteOne(ctx, "user-b", "shared")
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("DeleteAllForUser leaves other users alone", func(t *testing.T) {
		_, err := store.Upsert(ctx, "user-a", "tok-2", notification.PlatformAndroid)
		require.NoError(t, err)

		require.NoError(t, store.DeleteAllForUser(ctx, "user-a"))

		regs, err := store.FindByUser(ctx, "user-a")
		require.NoError(t, err)
		assert.Empty(t, regs)

		all, err := store.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "user-c", all[0].UserID)
	})

	t.Run("DeleteAllForUser waits for every queued delete", func(t *testing.T) {
		for i := range 25 {
			_, err := store.Upsert(ctx, "user-many", fmt.Sprintf("tok-%02d", i), notification.PlatformAndroid)
			require.NoError(t, err)
		}

		require.NoError(t, store.DeleteAllForUser(ctx, "user-many"))

		regs, err := store.FindByUser(ctx, "user-many")
		require.NoError(t, err)
		assert.Empty(t, regs)
	})
}

func TestHistoryStore_Integration(t *testing.T) {
	ctx, client := setupClient(t)
	store := fs.NewHistoryStore(client)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		_, err := store.Insert(ctx, notification.HistoryRecord{
			ID:               uuid.NewString(),
			UserID:           "user-h",
			NotificationType: notification.TypeOrderConfirm,
			Title:            "Order Confirmed!",
			Body:             "body",
			DataPayload:      notification.Data{"order_id": "o1"},
			Status:           notification.StatusSent,
			SentAt:           base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	records, err := store.ListByUser(ctx, "user-h", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].SentAt.Equal(base.Add(2*time.Minute)))
	assert.True(t, records[0].SentAt.After(records[1].SentAt))
	assert.Equal(t, "o1", records[0].DataPayload["order_id"])
}
