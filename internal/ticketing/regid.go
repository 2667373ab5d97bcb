package ticketing

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegistrationIDPrefix starts every human-readable registration identifier.
const RegistrationIDPrefix = "REG-"

// NewRegistrationID returns REG-<base36 millis>-<8 random hex chars>.
// The store enforces uniqueness; callers retry on conflict.
func NewRegistrationID(now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UTC().UnixMilli(), 36))
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return RegistrationIDPrefix + stamp + "-" + random
}
