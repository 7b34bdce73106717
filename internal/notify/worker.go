package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/matemarket/matemarket/internal/domain"
)

// Worker turns order.created events into confirmation mail. It runs in a
// separate process from order creation: by the time an event arrives the
// order has already committed, so nothing here can fail an order.
type Worker struct {
	mailer Mailer
	from   string
	logger *slog.Logger
}

func NewWorker(mailer Mailer, from string, logger *slog.Logger) *Worker {
	return &Worker{
		mailer: mailer,
		from:   from,
		logger: logger,
	}
}

// Handle processes one order.created payload. A returned error keeps the
// message uncommitted so the consumer redelivers it.
func (w *Worker) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	w.logger.Info("processing order created event", "order_id", event.OrderID, "client_id", event.ClientID)

	msg := Message{
		From:    w.from,
		To:      event.ClientEmail,
		Subject: "Order confirmation " + event.OrderID,
		Body:    RenderInvoice(event),
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		w.logger.Error("failed to send confirmation mail", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation mail: %w", err)
	}

	w.logger.Info("order confirmation sent", "order_id", event.OrderID, "to", event.ClientEmail)
	return nil
}
