package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"startickets/internal/logger"
	"startickets/internal/models"
	"startickets/internal/utils"
)

const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
)

// Sender publishes a keyed payload to a topic.
type Sender interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Topics struct {
	Created   string
	Cancelled string
}

// Publisher streams booking lifecycle events, keyed by booking reference.
type Publisher struct {
	Sender Sender
	Topics Topics
	Logger *logger.Logger
	Now    func() time.Time
}

func NewPublisher(sender Sender, topics Topics, log *logger.Logger) *Publisher {
	return &Publisher{Sender: sender, Topics: topics, Logger: log, Now: utils.UTCNow}
}

// PublishBookingCreated streams the booking confirmation event
func (p *Publisher) PublishBookingCreated(ctx context.Context, booking *models.Booking) error {
	return p.publish(ctx, p.Topics.Created, TypeBookingCreated, booking)
}

// PublishBookingCancelled streams the booking cancellation event
func (p *Publisher) PublishBookingCancelled(ctx context.Context, booking *models.Booking) error {
	return p.publish(ctx, p.Topics.Cancelled, TypeBookingCancelled, booking)
}

func (p *Publisher) publish(ctx context.Context, topic, eventType string, booking *models.Booking) error {
	msg := models.BookingEvent{
		EventID:          utils.GenerateEventID(),
		Type:             eventType,
		OccurredAt:       p.Now(),
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		CustomerID:       booking.CustomerID,
		CatalogEventID:   booking.EventID,
		FinalAmount:      booking.FinalAmount,
		TicketCount:      booking.TicketCount(),
		Status:           booking.Status,
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	key := booking.BookingReference
	if key == "" {
		key = strconv.FormatInt(booking.ID, 10)
	}
	if err := p.Sender.Publish(ctx, topic, key, value); err != nil {
		return err
	}
	p.Logger.LogKafka("PUBLISHED", topic, fmt.Sprintf("%s %s", eventType, key))
	return nil
}
