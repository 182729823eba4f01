package toll

import (
	"time"

	"tollfee/internal/model"
)

// BaseFee is the fee for a single passage before windowing and capping. Exemptions
// are evaluated here and nowhere else.
func (e *Engine) BaseFee(t time.Time, vt model.VehicleType) int {
	if vt.TollExempt() || e.cal.IsWeekend(t) || e.cal.IsHoliday(t) {
		return 0
	}
	return e.schedule.FeeAt(e.cal.MinutesSinceMidnight(t))
}
