package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"startickets/internal/logger"
	"startickets/internal/models"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:               12,
		BookingReference: "BK202610151200000042",
		CustomerID:       7,
		EventID:          3,
		FinalAmount:      54,
		Status:           models.BookingActive,
		Details:          []*models.BookingDetail{{Quantity: 2}, {Quantity: 1}},
	}
}

func TestPublishBookingCreated(t *testing.T) {
	sender := new(MockSender)
	p := NewPublisher(sender, Topics{Created: "booking-created", Cancelled: "booking-cancelled"}, logger.NewDiscard())
	occurred := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	p.Now = func() time.Time { return occurred }

	var payload []byte
	sender.On("Publish", "booking-created", "BK202610151200000042", mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(2).([]byte) }).
		Return(nil).Once()

	require.NoError(t, p.PublishBookingCreated(context.Background(), testBooking()))
	sender.AssertExpectations(t)

	var event models.BookingEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, TypeBookingCreated, event.Type)
	assert.Equal(t, int64(12), event.BookingID)
	assert.Equal(t, int64(3), event.CatalogEventID)
	assert.Equal(t, 3, event.TicketCount)
	assert.Equal(t, 54.0, event.FinalAmount)
	assert.True(t, occurred.Equal(event.OccurredAt))
	assert.NotEmpty(t, event.EventID)
}

func TestPublishBookingCancelledUsesCancelTopic(t *testing.T) {
	sender := new(MockSender)
	p := NewPublisher(sender, Topics{Created: "booking-created", Cancelled: "booking-cancelled"}, logger.NewDiscard())

	b := testBooking()
	b.Status = models.BookingCancelled
	sender.On("Publish", "booking-cancelled", b.BookingReference, mock.Anything).Return(nil).Once()

	require.NoError(t, p.PublishBookingCancelled(context.Background(), b))
	sender.AssertExpectations(t)
}

func TestPublishPropagatesSenderError(t *testing.T) {
	sender := new(MockSender)
	p := NewPublisher(sender, Topics{Created: "booking-created"}, logger.NewDiscard())
	sender.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no brokers"))

	err := p.PublishBookingCreated(context.Background(), testBooking())
	assert.EqualError(t, err, "no brokers")
}
