// Package coordinator applies status changes optimistically to a view's
// order store, issues the remote compare-and-swap mutation and reconciles
// the local state against the remote verdict.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/status"
	"github.com/brewline/brewline/internal/view/store"
	"github.com/brewline/brewline/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/brewline/brewline/view/coordinator")

const defaultTimeout = 10 * time.Second

// RemoteUpdater performs the conditional remote mutation. It must return a
// conflict error when the remote status no longer matches expected.
type RemoteUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, target status.Status) error
}

// Coordinator serializes optimistic status mutations per order id. At most
// one mutation is in flight per order; concurrent requests are rejected with
// a busy error rather than queued.
type Coordinator struct {
	store   *store.Store
	remote  RemoteUpdater
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.Mutex
	busy map[uuid.UUID]struct{}
}

// New constructs a Coordinator. A non-positive timeout falls back to 10s.
func New(st *store.Store, remote RemoteUpdater, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Coordinator{
		store:   st,
		remote:  remote,
		timeout: timeout,
		logger:  logger,
		busy:    make(map[uuid.UUID]struct{}),
	}
}

// NewFromConfig constructs a Coordinator with the configured mutation timeout.
func NewFromConfig(st *store.Store, remote RemoteUpdater, cfg config.Config, logger *zap.Logger) *Coordinator {
	return New(st, remote, cfg.Mutation.Timeout, logger)
}

// RequestStatusChange validates the transition, applies it to the local
// store immediately and issues the remote compare-and-swap. On remote success
// the optimistic state stays; the echoed feed update is absorbed as a no-op.
// On conflict or failure the local state reverts to the last remote-confirmed
// status and the error is surfaced. Failures are not retried here; a retry
// requires re-reading current state first.
func (c *Coordinator) RequestStatusChange(ctx context.Context, id uuid.UUID, target status.Status) error {
	ctx, span := tracer.Start(ctx, "Coordinator.RequestStatusChange", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	order, ok := c.store.Get(id)
	if !ok {
		return errorbank.NotFound("order not found", errorbank.WithDetail("id", id.String()))
	}

	if err := status.Transition(order.Status, target); err != nil {
		return err
	}

	if !c.acquire(id) {
		return errorbank.Busy("a status change is already in flight for this order",
			errorbank.WithDetail("id", id.String()))
	}
	defer c.release(id)

	prev, ok := c.store.ApplyOptimistic(id, target)
	if !ok {
		// The order vanished or another mutation slipped in between the
		// busy check and the apply.
		return errorbank.Busy("order state changed while acquiring the mutation slot")
	}

	remoteCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.remote.UpdateStatus(remoteCtx, id, prev, target); err != nil {
		c.store.RevertOptimistic(id)
		span.RecordError(err)
		span.SetStatus(codes.Error, "remote mutation failed")

		if errorbank.IsKind(err, errorbank.KindConflict) {
			if c.logger != nil {
				c.logger.Warn("status change lost the compare-and-swap",
					zap.String("id", id.String()),
					zap.String("expected", string(prev)),
					zap.String("target", string(target)),
				)
			}
			return errorbank.Conflict("order was transitioned concurrently", errorbank.WithCause(err))
		}
		return errorbank.Internal("status update failed", errorbank.WithCause(err))
	}

	c.store.ConfirmOptimistic(id)
	return nil
}

func (c *Coordinator) acquire(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.busy[id]; taken {
		return false
	}
	c.busy[id] = struct{}{}
	return true
}

func (c *Coordinator) release(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, id)
}
