package order

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/internal/dto"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/presentation/http/response"
	"github.com/brewline/brewline/pkg/errorbank"
)

// Streamer bridges the change feed onto server-sent events. Each connection
// gets the initial snapshot as its first event, then live changes until the
// client disconnects.
type Streamer struct {
	client    *feed.Client
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewStreamer constructs a Streamer.
func NewStreamer(client *feed.Client, cfg config.Config, logger *zap.Logger) *Streamer {
	heartbeat := cfg.Feed.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Streamer{client: client, heartbeat: heartbeat, logger: logger}
}

// Stream handles GET /orders/stream. Optional user_id and order_id query
// params restrict the feed; disconnecting unsubscribes.
func (s *Streamer) Stream(c echo.Context) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return response.New(c).WithError(err).Build()
	}

	ctx := c.Request().Context()
	f := s.client.Subscribe(ctx, filter)
	defer f.Unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if f.Err != nil {
		// Degraded view: the stream still runs, but the client is told
		// its snapshot is missing so it can show a banner and refetch.
		if err := writeSSE(w, "degraded", map[string]string{"error": f.Err.Error()}); err != nil {
			return nil
		}
	}

	snapshot := make([]dto.OrderResponse, 0, len(f.Snapshot))
	for i := range f.Snapshot {
		snapshot = append(snapshot, dto.NewOrderResponse(&f.Snapshot[i]))
	}
	if err := writeSSE(w, "snapshot", snapshot); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-f.Events():
			if !ok {
				return nil
			}
			if err := writeSSE(w, string(event.Kind), changePayload(event)); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func filterFromQuery(c echo.Context) (feed.Filter, error) {
	var filter feed.Filter
	if raw := c.QueryParam("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return feed.Filter{}, errorbank.BadRequest("invalid user_id", errorbank.WithCause(err))
		}
		filter.UserID = &userID
	}
	if raw := c.QueryParam("order_id"); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			return feed.Filter{}, errorbank.BadRequest("invalid order_id", errorbank.WithCause(err))
		}
		filter.OrderID = &orderID
	}
	return filter, nil
}

type changeEventPayload struct {
	Order dto.OrderResponse `json:"order"`
}

func changePayload(event feed.Event) changeEventPayload {
	order := event.Order
	return changeEventPayload{Order: dto.NewOrderResponse(&order)}
}

func writeSSE(w *echo.Response, event string, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, encoded); err != nil {
		return err
	}
	w.Flush()
	return nil
}
