// Package toll computes road-toll charges for batches of passages.
//
// A calculation is a pure function of the passage batch: passages are grouped by
// vehicle and civil day, each group is walked in time order, chargeable passages are
// merged into 60-minute windows anchored at their first member, only the highest fee
// of a window is charged and the running total of a day never exceeds DailyCap.
package toll

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"tollfee/internal/model"
)

// Engine computes charges. It holds no state between calls and is safe for
// concurrent use.
type Engine struct {
	cal      *Calendar
	schedule Schedule
	cache    GroupCache
}

type Option func(*Engine)

// WithCache memoizes vehicle-day groups by content.
func WithCache(c GroupCache) Option {
	return func(e *Engine) { e.cache = c }
}

func NewEngine(cal *Calendar, opts ...Option) *Engine {
	e := &Engine{cal: cal, schedule: DefaultSchedule}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Calendar() *Calendar { return e.cal }

// Calculate returns exactly one charge per input passage, keyed by passage id. A
// passage with an unresolvable timestamp fails the whole batch with a
// *TimestampError.
func (e *Engine) Calculate(passages []model.Passage) (map[string]model.Charge, error) {
	groups, err := e.group(passages)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Charge, len(passages))
	for _, g := range groups {
		for _, c := range e.settle(g) {
			out[c.PassageID] = c
		}
	}
	return out, nil
}

func (e *Engine) settle(g []entry) []model.Charge {
	if e.cache == nil {
		return settleDay(g)
	}
	key := e.groupHash(g)
	if cached, ok := e.cache.Get(key); ok && matches(cached, g) {
		return cached
	}
	charges := settleDay(g)
	e.cache.Put(key, charges)
	return charges
}

// groupHash fingerprints everything a group's charges depend on.
func (e *Engine) groupHash(g []entry) string {
	h := sha256.New()
	h.Write([]byte(e.cal.holidays.Version))
	var buf [8]byte
	for _, en := range g {
		h.Write([]byte{0})
		h.Write([]byte(en.passage.ID))
		h.Write([]byte{0})
		h.Write([]byte(en.passage.VehicleType))
		binary.BigEndian.PutUint64(buf[:], uint64(en.at.UnixNano()))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func matches(charges []model.Charge, g []entry) bool {
	if len(charges) != len(g) {
		return false
	}
	ids := make(map[string]struct{}, len(g))
	for _, en := range g {
		ids[en.passage.ID] = struct{}{}
	}
	for _, c := range charges {
		if _, ok := ids[c.PassageID]; !ok {
			return false
		}
	}
	return true
}
