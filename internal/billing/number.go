package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumberGenerator returns a candidate bill number for the given instant.
// Candidates are checked for uniqueness before use.
type NumberGenerator func(now time.Time) string

// DefaultNumber yields BILL-YYYYMMDD-XXXXXXXX with a random hex suffix.
func DefaultNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "BILL-" + now.Format("20060102") + "-" + suffix
}
