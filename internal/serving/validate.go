package serving

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/pulse/internal/taxonomy"
)

// ErrInvalidRequest marks client errors. Handlers map it to 400.
var ErrInvalidRequest = errors.New("invalid request")

// MaxRangeDays caps how much history one request may span
const MaxRangeDays = 730

// ValidateMetricKey checks the key against the catalog
func ValidateMetricKey(key string) (taxonomy.Descriptor, error) {
	d, ok := taxonomy.Lookup(key)
	if !ok {
		return taxonomy.Descriptor{}, fmt.Errorf("%w: unknown metric_key %q, valid keys: %s",
			ErrInvalidRequest, key, strings.Join(taxonomy.Keys(), ", "))
	}
	return d, nil
}

// ValidateDateRange checks ordering and span
func ValidateDateRange(start, end time.Time) error {
	if start.After(end) {
		return fmt.Errorf("%w: start_date (%s) must be <= end_date (%s)",
			ErrInvalidRequest, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if int(end.Sub(start).Hours()/24) > MaxRangeDays {
		return fmt.Errorf("%w: date range cannot exceed 2 years (%d days)", ErrInvalidRequest, MaxRangeDays)
	}
	return nil
}
