package toll

// FeeInterval charges Fee for every civil minute in [StartMinute, EndMinute].
type FeeInterval struct {
	StartMinute int
	EndMinute   int
	Fee         int
}

// Schedule is an ordered, non-overlapping list of fee intervals.
type Schedule []FeeInterval

// DefaultSchedule is the weekday fee table. Minutes outside it are free.
var DefaultSchedule = Schedule{
	{StartMinute: 6 * 60, EndMinute: 6*60 + 29, Fee: 8},
	{StartMinute: 6*60 + 30, EndMinute: 6*60 + 59, Fee: 13},
	{StartMinute: 7 * 60, EndMinute: 7*60 + 59, Fee: 18},
	{StartMinute: 8 * 60, EndMinute: 8*60 + 29, Fee: 13},
	{StartMinute: 8*60 + 30, EndMinute: 14*60 + 59, Fee: 8},
	{StartMinute: 15 * 60, EndMinute: 15*60 + 29, Fee: 13},
	{StartMinute: 15*60 + 30, EndMinute: 16*60 + 59, Fee: 18},
	{StartMinute: 17 * 60, EndMinute: 17*60 + 59, Fee: 13},
	{StartMinute: 18 * 60, EndMinute: 18*60 + 29, Fee: 8},
}

// FeeAt returns the fee of the first interval containing minute, or 0.
func (s Schedule) FeeAt(minute int) int {
	for _, iv := range s {
		if minute >= iv.StartMinute && minute <= iv.EndMinute {
			return iv.Fee
		}
	}
	return 0
}
