package toll

import "tollfee/internal/model"

// DailyCap is the most one vehicle is charged on one civil day.
const DailyCap = 60

// dailyCap tracks the running total of one vehicle-day group.
type dailyCap struct {
	limit int
	total int
}

// charge applies the cap to a window's selected base fee and books the result.
func (c *dailyCap) charge(base int) int {
	var charged int
	switch {
	case c.total >= c.limit:
		charged = 0
	case c.total+base > c.limit:
		charged = c.limit - c.total
	default:
		charged = base
	}
	c.total += charged
	return charged
}

// finalize charges the window's selected member and reports every member with the
// running total after this window.
func (c *dailyCap) finalize(w *window) []model.Charge {
	sel := w.selected()
	charged := c.charge(sel.baseFee)
	out := make([]model.Charge, 0, len(w.members))
	for _, m := range w.members {
		ch := model.Charge{PassageID: m.passage.ID, BaseFee: m.baseFee, DailyTotal: c.total}
		if m.passage.ID == sel.passage.ID {
			ch.ChargedFee = charged
		}
		out = append(out, ch)
	}
	return out
}
