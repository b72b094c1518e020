package agave

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are the forms Agave services use for lastModified and
// similar fields, e.g. "2018-07-10T12:28:01.000-05:00". Older deployments
// drop the colon in the offset.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
}

// ParseTimestamp parses a server-provided timestamp. The returned error
// wraps ErrBadTimestamp and is safe to treat as "unknown time".
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}
