package toll

import (
	"time"

	"tollfee/internal/model"
)

// WindowDuration bounds a window, measured from its first member.
const WindowDuration = 60 * time.Minute

// window is a run of chargeable passages within WindowDuration of start.
type window struct {
	start   time.Time
	members []entry
}

func openWindow(e entry) *window {
	return &window{start: e.at, members: []entry{e}}
}

func (w *window) admits(e entry) bool {
	return e.at.Sub(w.start) < WindowDuration
}

// selected returns the member that is actually charged.
func (w *window) selected() entry {
	best := w.members[0]
	for _, m := range w.members[1:] {
		if outranks(m, best) {
			best = m
		}
	}
	return best
}

// outranks reports whether a is charged in preference to b: the strictly higher
// base fee wins and equal fees go to the earlier passage.
func outranks(a, b entry) bool {
	if a.baseFee != b.baseFee {
		return a.baseFee > b.baseFee
	}
	return a.at.Before(b.at)
}

// settleDay runs one vehicle-day group, sorted ascending, through the windowing
// pass and the daily cap and returns one charge per entry in entry order.
func settleDay(entries []entry) []model.Charge {
	out := make([]model.Charge, 0, len(entries))
	ledger := dailyCap{limit: DailyCap}
	var open *window

	for _, e := range entries {
		if e.baseFee == 0 {
			out = append(out, model.Charge{PassageID: e.passage.ID, DailyTotal: ledger.total})
			continue
		}
		if open == nil {
			open = openWindow(e)
			continue
		}
		if open.admits(e) {
			open.members = append(open.members, e)
			continue
		}
		out = append(out, ledger.finalize(open)...)
		open = openWindow(e)
	}
	if open != nil {
		out = append(out, ledger.finalize(open)...)
	}
	return out
}
