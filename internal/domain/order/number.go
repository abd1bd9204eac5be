package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumberPrefix starts every order number.
const NumberPrefix = "LKN-"

// NewNumber returns a human-friendly order number such as LKN-20261019-7F3A9C.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return NumberPrefix + now.UTC().Format("20060102") + "-" + suffix
}
