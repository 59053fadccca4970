package utils

import (
	"time"
)

// UTCNow is the default clock used by services.
func UTCNow() time.Time {
	return time.Now().UTC()
}
