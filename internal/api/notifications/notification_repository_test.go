package notifications

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidmaster/bidmaster/internal/types"
)

func newMockRepo(t *testing.T) (*PostgresNotificationRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgresNotificationRepo(mockPool, logger), mockPool
}

func TestAppend(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WithArgs(userID, "new_bid", "New bid placed", "A new bid was placed on Rug. Current bid: $120").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Append(context.Background(), userID, types.EventNewBid,
		"New bid placed", "A new bid was placed on Rug. Current bid: $120")

	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestListForUser_UnreadOnly(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{"id", "user_id", "type", "title", "message", "read", "created_at"}).
		AddRow(uuid.New(), userID, types.EventOutbid, "You've been outbid!", "...", false, now)
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, type, title, message, read, created_at`)).
		WithArgs(userID, false).
		WillReturnRows(rows)

	unread := false
	items, err := repo.ListForUser(context.Background(), userID, &unread, 10)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.EventOutbid, items[0].Type)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMarkRead_OwnerOnly(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	notificationID := uuid.New()
	userID := uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`UPDATE notifications SET read = true`)).
		WithArgs(notificationID, userID).
		WillReturnError(assert.AnError)

	_, err := repo.MarkRead(context.Background(), notificationID, userID)
	assert.Error(t, err)

	mockPool.ExpectQuery(regexp.QuoteMeta(`UPDATE notifications SET read = true`)).
		WithArgs(notificationID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "type", "title", "message", "read", "created_at"}).
			AddRow(notificationID, userID, types.EventAuctionWon, "You won the auction!", "...", true, time.Now()))

	n, err := repo.MarkRead(context.Background(), notificationID, userID)
	require.NoError(t, err)
	assert.True(t, n.Read)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveToken_Upsert(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectExec(regexp.QuoteMeta(`INSERT INTO push_tokens`)).
		WithArgs(userID, "device-token-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.SaveToken(context.Background(), userID, "device-token-1")

	require.NoError(t, err)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTokensFor(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	userID := uuid.New()

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT token FROM push_tokens`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow("t1").AddRow("t2"))

	tokens, err := repo.TokensFor(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, tokens)
	require.NoError(t, mockPool.ExpectationsWereMet())
}
