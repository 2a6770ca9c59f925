package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/bidmaster/bidmaster/app/observability/metrics"
	"github.com/bidmaster/bidmaster/internal/push"
	"github.com/bidmaster/bidmaster/internal/types"
)

// ProductRef is the slice of product state the dispatcher interpolates into
// payload templates.
type ProductRef struct {
	ID    uuid.UUID
	Title string
}

// Meta carries the per-event variables: final/current amount, rejection
// reason, hours left before close.
type Meta struct {
	Amount    *float64
	Reason    string
	HoursLeft *float64
}

var _ Dispatcher = (*DispatcherImpl)(nil)

// Dispatcher composes and delivers notifications. Dispatch is best-effort by
// contract: it never returns an error, because a delivery failure must not
// fail the business operation that triggered it.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, event types.NotificationEvent, product ProductRef, meta Meta)
}

type DispatcherImpl struct {
	repo   NotificationRepo
	sender push.Sender
	logger *slog.Logger
}

func NewDispatcher(repo NotificationRepo, sender push.Sender, logger *slog.Logger) *DispatcherImpl {
	return &DispatcherImpl{repo: repo, sender: sender, logger: logger}
}

// Dispatch resolves the user's tokens, sends one multicast and appends one
// log row. A user with zero tokens still gets the log row so the in-app
// notification center stays populated. Partial multicast success is success;
// transport failure is logged and swallowed. No retry, no backoff, no
// dead-token pruning.
func (d *DispatcherImpl) Dispatch(ctx context.Context, userID uuid.UUID, event types.NotificationEvent, product ProductRef, meta Meta) {
	l := d.logger.With(
		slog.String("event", string(event)),
		slog.String("user_id", userID.String()),
		slog.String("product_id", product.ID.String()),
	)
	metrics.Get().NotificationsDispatchedTotal.Add(ctx, 1)

	tokens, err := d.repo.TokensFor(ctx, userID)
	if err != nil {
		l.WarnContext(ctx, "Failed to resolve push tokens, delivering log row only", slog.Any("error", err))
		tokens = nil
	}

	notification, data := buildPayload(event, product, meta)

	if len(tokens) > 0 {
		result, err := d.sender.SendMulticast(ctx, tokens, notification, data)
		if err != nil {
			metrics.Get().PushSendFailuresTotal.Add(ctx, 1)
			l.WarnContext(ctx, "Push transport call failed", slog.Any("error", err))
		} else if result.FailureCount > 0 {
			l.DebugContext(ctx, "Partial push delivery",
				slog.Int("success", result.SuccessCount),
				slog.Int("failure", result.FailureCount))
		}
	}

	if err := d.repo.Append(ctx, userID, event, notification.Title, notification.Body); err != nil {
		l.WarnContext(ctx, "Failed to append notification log row", slog.Any("error", err))
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// buildPayload selects the fixed title/body template for the event type and
// interpolates product title plus amount or reason.
func buildPayload(event types.NotificationEvent, product ProductRef, meta Meta) (push.Notification, map[string]string) {
	data := map[string]string{
		"type":          string(event),
		"product_id":    product.ID.String(),
		"product_title": product.Title,
	}

	var n push.Notification
	switch event {
	case types.EventOutbid:
		n = push.Notification{
			Title: "You've been outbid!",
			Body:  fmt.Sprintf("Someone placed a higher bid on %s. Current bid: $%s", product.Title, formatAmount(deref(meta.Amount))),
		}
		data["bid_amount"] = formatAmount(deref(meta.Amount))

	case types.EventNewBid:
		n = push.Notification{
			Title: "New bid placed",
			Body:  fmt.Sprintf("A new bid was placed on %s. Current bid: $%s", product.Title, formatAmount(deref(meta.Amount))),
		}
		data["bid_amount"] = formatAmount(deref(meta.Amount))

	case types.EventAuctionEnding:
		hours := "a few"
		if meta.HoursLeft != nil {
			hours = formatAmount(*meta.HoursLeft)
			data["hours_left"] = hours
		}
		n = push.Notification{
			Title: "Auction ending soon!",
			Body:  fmt.Sprintf("%s auction ends in %s hours", product.Title, hours),
		}

	case types.EventAuctionWon:
		n = push.Notification{
			Title: "You won the auction!",
			Body:  fmt.Sprintf("Congratulations! You won %s for $%s", product.Title, formatAmount(deref(meta.Amount))),
		}
		data["bid_amount"] = formatAmount(deref(meta.Amount))

	case types.EventProductApproved:
		n = push.Notification{
			Title: "Product approved",
			Body:  fmt.Sprintf("Your product %q has been approved and is now live", product.Title),
		}

	case types.EventProductRejected:
		body := fmt.Sprintf("Your product %q was rejected.", product.Title)
		if meta.Reason != "" {
			body += " Reason: " + meta.Reason
			data["reason"] = meta.Reason
		}
		n = push.Notification{Title: "Product rejected", Body: body}

	default:
		n = push.Notification{
			Title: "Auction update",
			Body:  fmt.Sprintf("Update on %s", product.Title),
		}
	}

	return n, data
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
