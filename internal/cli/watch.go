package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brewline/brewline/internal/dto"
	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/view/store"
)

// newOrdersWatchCmd tails the order change feed from a running API instance
// and renders a terminal board. The board is driven by the same view store the
// barista UI uses, so it shows exactly what a subscriber would see: the
// snapshot first, then live updates.
func newOrdersWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail the live order board",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			token, _ := cmd.Flags().GetString("token")
			userID, _ := cmd.Flags().GetString("user-id")
			orderID, _ := cmd.Flags().GetString("order-id")
			scope, _ := cmd.Flags().GetString("scope")

			pred, err := scopePredicate(scope)
			if err != nil {
				return err
			}
			return watchOrders(cmd.Context(), cmd.OutOrStdout(), watchOptions{
				addr:    addr,
				token:   token,
				userID:  userID,
				orderID: orderID,
				pred:    pred,
			})
		},
	}
	cmd.Flags().String("addr", "http://localhost:8080", "Base URL of the brewline API")
	cmd.Flags().String("token", "", "Bearer token for the stream endpoint")
	cmd.Flags().String("user-id", "", "Only watch orders for this user")
	cmd.Flags().String("order-id", "", "Only watch a single order")
	cmd.Flags().String("scope", "active", "Board scope: active, past or all")
	return cmd
}

type watchOptions struct {
	addr    string
	token   string
	userID  string
	orderID string
	pred    store.Predicate
}

func scopePredicate(scope string) (store.Predicate, error) {
	switch scope {
	case "active":
		return store.Active, nil
	case "past":
		return store.Past, nil
	case "all":
		return store.All, nil
	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
}

func watchOrders(ctx context.Context, out io.Writer, opts watchOptions) error {
	streamURL, err := url.Parse(opts.addr)
	if err != nil {
		return fmt.Errorf("invalid addr: %w", err)
	}
	streamURL = streamURL.JoinPath("orders", "stream")
	query := streamURL.Query()
	if opts.userID != "" {
		query.Set("user_id", opts.userID)
	}
	if opts.orderID != "" {
		query.Set("order_id", opts.orderID)
	}
	streamURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	board := store.New()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var eventName string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := applyStreamEvent(board, eventName, []byte(strings.TrimPrefix(line, "data: ")), out); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			renderBoard(out, board, opts.pred)
		case line == "":
			eventName = ""
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func applyStreamEvent(board *store.Store, eventName string, data []byte, out io.Writer) error {
	switch eventName {
	case "snapshot":
		var snapshot []dto.OrderResponse
		if err := json.Unmarshal(data, &snapshot); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		orders := make([]entity.Order, 0, len(snapshot))
		for i := range snapshot {
			orders = append(orders, orderFromResponse(snapshot[i]))
		}
		board.ApplyInitialSnapshot(orders)
	case "degraded":
		fmt.Fprintln(out, "! snapshot unavailable, showing live changes only")
	case string(feed.KindInsert), string(feed.KindUpdate), string(feed.KindDelete):
		var payload struct {
			Order dto.OrderResponse `json:"order"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode change: %w", err)
		}
		board.ApplyEvent(feed.Event{Kind: feed.Kind(eventName), Order: orderFromResponse(payload.Order)})
	}
	return nil
}

func orderFromResponse(r dto.OrderResponse) entity.Order {
	return entity.Order{
		ID:              r.ID,
		UserID:          r.UserID,
		Items:           r.Items,
		Status:          r.Status,
		PickupTime:      r.PickupTime,
		ShareLocation:   r.ShareLocation,
		CurrentLocation: r.CurrentLocation,
		CreatedAt:       r.CreatedAt,
	}
}

func renderBoard(out io.Writer, board *store.Store, pred store.Predicate) {
	orders := board.List(pred)
	fmt.Fprintf(out, "--- %d order(s) ---\n", len(orders))
	for i := range orders {
		order := orders[i]
		fmt.Fprintf(out, "%s  %-10s  %d item(s)  pickup %s\n",
			order.ID, order.Status, len(order.Items), order.PickupTime.Format("15:04"))
	}
}
