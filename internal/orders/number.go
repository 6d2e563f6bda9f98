package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXXXX. Uniqueness is enforced by
// the store; callers retry on collision.
func NewOrderNumber(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(hex[:8])
}
