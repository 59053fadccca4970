package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const referenceLayout = "20060102150405"

// GenerateBookingReference returns "BK" + UTC timestamp to the second + 4 random digits.
func GenerateBookingReference(now time.Time) string {
	randomNum, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// fall back to the clock; the unique column still catches collisions
		return fmt.Sprintf("BK%s%04d", now.UTC().Format(referenceLayout), now.Nanosecond()%10000)
	}
	return fmt.Sprintf("BK%s%04d", now.UTC().Format(referenceLayout), randomNum.Int64())
}

// TicketNumber is unique per (booking, detail, seq); seq is 1-based within a detail.
func TicketNumber(bookingID, detailID int64, seq int) string {
	return fmt.Sprintf("TKT-%08d-%08d-%03d", bookingID, detailID, seq)
}

// TicketQRPayload is the text encoded into the ticket's QR image.
func TicketQRPayload(bookingReference string, detailID int64, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", bookingReference, detailID, seq)
}

// GenerateEventID identifies a published domain event.
func GenerateEventID() string {
	return uuid.NewString()
}
