package products

import (
	"context"
	"errors"
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

func newMockRepo(t *testing.T) (*PostgresProductRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgresProductRepo(mockPool, logger), mockPool
}

func TestPlaceBid_ConditionalUpdateAccepts(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	productID := uuid.New()
	bidderID := uuid.New()
	previousID := uuid.New()
	placedAt := time.Now()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs(productID, bidderID, 150.0).
		WillReturnRows(pgxmock.NewRows([]string{"highest_bidder_id"}).AddRow(&previousID))
	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO bids`)).
		WithArgs(productID, bidderID, 150.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(placedAt))
	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bids`)).
		WithArgs(productID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))
	mockPool.ExpectCommit()

	outcome, err := repo.PlaceBid(context.Background(), productID, bidderID, 150)

	require.NoError(t, err)
	assert.Equal(t, previousID, *outcome.PreviousBidderID)
	assert.Equal(t, int64(4), outcome.TotalBids)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPlaceBid_GuardMissSurfacesConflict(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	productID := uuid.New()
	bidderID := uuid.New()

	// Zero rows from the guarded UPDATE: the bid lost the race or the
	// auction just closed.
	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs(productID, bidderID, 150.0).
		WillReturnRows(pgxmock.NewRows([]string{"highest_bidder_id"}))
	mockPool.ExpectRollback()

	_, err := repo.PlaceBid(context.Background(), productID, bidderID, 150)

	assert.ErrorIs(t, err, types.ErrConflict)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPlaceBid_RecordFailureRollsBackAcceptance(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	productID := uuid.New()
	bidderID := uuid.New()
	previousID := uuid.New()

	// The guarded UPDATE succeeds but the bid row insert fails: the whole
	// transaction rolls back so current_price never advances without a
	// matching bids row.
	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs(productID, bidderID, 150.0).
		WillReturnRows(pgxmock.NewRows([]string{"highest_bidder_id"}).AddRow(&previousID))
	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO bids`)).
		WithArgs(productID, bidderID, 150.0).
		WillReturnError(errors.New("connection reset"))
	mockPool.ExpectRollback()

	_, err := repo.PlaceBid(context.Background(), productID, bidderID, 150)

	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrConflict)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreate_InsertsPendingLot(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	sellerID := uuid.New()
	productID := uuid.New()
	endTime := time.Now().Add(7 * 24 * time.Hour)
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "seller_id", "title", "description", "image_url", "category_id",
		"starting_price", "current_price", "highest_bidder_id", "status",
		"auction_end_time", "created_at", "updated_at",
	}).AddRow(productID, sellerID, "Rug", nil, nil, nil,
		25.0, 25.0, nil, types.ProductPending, endTime, now, now)

	mockPool.ExpectQuery(regexp.QuoteMeta(`INSERT INTO products`)).
		WithArgs(sellerID, "Rug", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 25.0, endTime).
		WillReturnRows(rows)

	p, err := repo.Create(context.Background(), CreateProductParams{
		SellerID:       sellerID,
		Title:          "Rug",
		StartingPrice:  25,
		AuctionEndTime: endTime,
	})

	require.NoError(t, err)
	assert.Equal(t, types.ProductPending, p.Status)
	assert.Equal(t, 25.0, p.CurrentPrice)
	require.NoError(t, mockPool.ExpectationsWereMet())
}
