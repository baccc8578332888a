package utils

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultTimezone is the organization-local timezone every provider timestamp
// is converted into before any date comparison.
const DefaultTimezone = "Asia/Seoul"

// CanonicalLocation resolves the canonical timezone from TIMEZONE, falling
// back to a fixed KST offset when the zone database is unavailable.
func CanonicalLocation() *time.Location {
	name := strings.TrimSpace(os.Getenv("TIMEZONE"))
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// ParseProviderTime accepts the timestamp shapes the upstream APIs emit
// (RFC3339 with or without fractional seconds) and returns the instant in the
// canonical timezone.
func ParseProviderTime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
