package toll

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"tollfee/internal/model"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// TimestampError identifies the passage whose timestamp could not be resolved.
type TimestampError struct {
	PassageID string
	Value     string
	Err       error
}

func (e *TimestampError) Error() string {
	if e.PassageID == "" {
		return fmt.Sprintf("invalid timestamp %q", e.Value)
	}
	return fmt.Sprintf("invalid timestamp for passage %s: %q", e.PassageID, e.Value)
}

func (e *TimestampError) Unwrap() error { return e.Err }

func (e *TimestampError) Is(target error) bool { return target == ErrInvalidTimestamp }

// ParseTimestamp resolves an ISO-8601 timestamp with offset to an absolute instant.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

type entry struct {
	passage model.Passage
	at      time.Time
	baseFee int
}

type groupKey struct {
	vehicleID string
	date      string
}

// group partitions passages by vehicle and civil day and sorts each group
// ascending by instant. Any unparseable timestamp fails the whole batch.
func (e *Engine) group(passages []model.Passage) (map[groupKey][]entry, error) {
	groups := make(map[groupKey][]entry)
	for _, p := range passages {
		if !p.VehicleType.Valid() {
			panic(fmt.Sprintf("toll: passage %s has unvalidated vehicle type %q", p.ID, p.VehicleType))
		}
		at, err := ParseTimestamp(p.Timestamp)
		if err != nil {
			return nil, &TimestampError{PassageID: p.ID, Value: p.Timestamp, Err: err}
		}
		k := groupKey{vehicleID: p.VehicleID, date: e.cal.LocalDateKey(at)}
		groups[k] = append(groups[k], entry{passage: p, at: at, baseFee: e.BaseFee(at, p.VehicleType)})
	}
	for _, g := range groups {
		sortEntries(g)
	}
	return groups, nil
}

// sortEntries orders by instant; equal instants fall back to passage id so the
// result does not depend on input order.
func sortEntries(g []entry) {
	sort.Slice(g, func(i, j int) bool {
		if !g[i].at.Equal(g[j].at) {
			return g[i].at.Before(g[j].at)
		}
		return g[i].passage.ID < g[j].passage.ID
	})
}
