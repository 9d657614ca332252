package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rkarimi/simbazaar/pkg/database"
)

// Exchange is the topic exchange all marketplace events are published to.
// The routing key is the event type.
const Exchange = "marketplace.events"

// Event types emitted by the marketplace domain services.
const (
	EventTypeBidPlaced      = "bid.placed"
	EventTypeRefundSkipped  = "bid.refund_skipped"
	EventTypeAuctionSettled = "auction.settled"
	EventTypeOrderCreated   = "order.created"
	EventTypeOrderStatus    = "order.status_changed"
	EventTypeOrderCompleted = "order.completed"
	EventTypeOrderCancelled = "order.cancelled"
)

// OutboxStatus defines the status of an event in the outbox
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent represents a domain event stored in the database alongside the
// state change that produced it (transactional outbox). Payload is JSON.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// OutboxRepository defines the interface for interacting with the outbox table
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// OutboxRelay polls the database for pending events and publishes them.
// Publish and status update happen in one transaction; a failed publish rolls
// back and the event stays pending for the next tick.
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  EventPublisher
	txManager  database.TransactionManager
	batchSize  int
	interval   time.Duration
	logger     *slog.Logger
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher EventPublisher,
	txManager database.TransactionManager,
	batchSize int,
	interval time.Duration,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		batchSize:  batchSize,
		interval:   interval,
		logger:     logger,
	}
}

// Run starts the polling loop and blocks until the context is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial run
	if err := r.processBatch(ctx); err != nil {
		r.logger.Error("Error processing batch", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("Error processing batch", "error", err)
			}
		}
	}
}

func (r *OutboxRelay) processBatch(ctx context.Context) error {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Fetch pending events with FOR UPDATE SKIP LOCKED so concurrent
	// relay workers never double-publish the same event.
	pending, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	r.logger.Info("Processing events", "count", len(pending))

	for _, event := range pending {
		if pubErr := r.publisher.Publish(ctx, Exchange, event.EventType, event.Payload); pubErr != nil {
			// The transaction rolls back and the event stays pending.
			return fmt.Errorf("failed to publish event %s: %w", event.ID, pubErr)
		}

		if updErr := r.outboxRepo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusPublished); updErr != nil {
			return fmt.Errorf("failed to update event status %s: %w", event.ID, updErr)
		}
	}

	return tx.Commit(ctx)
}
