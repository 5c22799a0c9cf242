package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"bookingsystem/internal/events"
	"bookingsystem/internal/finance/service"
	"bookingsystem/internal/rabbitmq"
)

// BookingCreatedHandler adapts the invoice service to the consumer
// pipeline: deserialize the envelope, dispatch to the idempotent handler.
// Any error returned here makes the pipeline reject the delivery without
// requeue; a malformed payload cannot heal by retrying.
func BookingCreatedHandler(invoices service.InvoiceService, logger *zap.Logger) rabbitmq.DeliveryHandler {
	return func(ctx context.Context, body []byte) error {
		var event events.BookingCreatedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			logger.Error("Failed to decode booking created event, rejecting as poison",
				zap.ByteString("body", body),
				zap.Error(err),
			)
			return fmt.Errorf("failed to decode booking created event: %w", err)
		}

		invoice, outcome, err := invoices.CreateFromBooking(ctx, &event)
		if err != nil {
			return fmt.Errorf("failed to create invoice for booking %s: %w", event.BookingID, err)
		}

		if outcome == service.OutcomeAlreadyExists {
			logger.Info("Duplicate booking created delivery, invoice unchanged",
				zap.String("booking_id", event.BookingID),
				zap.String("invoice_id", invoice.ID.String()),
			)
			return nil
		}

		logger.Info("Invoice created from booking event",
			zap.String("booking_id", event.BookingID),
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("invoice_number", invoice.InvoiceNumber),
		)
		return nil
	}
}
