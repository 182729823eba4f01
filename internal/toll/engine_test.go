package toll

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"tollfee/internal/model"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(MustDefaultCalendar(), opts...)
}

func car(id, ts string) model.Passage {
	return model.Passage{ID: id, VehicleID: "veh-1", VehicleType: model.VehicleCar, Timestamp: ts}
}

func mustCalculate(t *testing.T, e *Engine, ps []model.Passage) map[string]model.Charge {
	t.Helper()
	got, err := e.Calculate(ps)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(got) != len(ps) {
		t.Fatalf("got %d charges for %d passages", len(got), len(ps))
	}
	return got
}

func TestCalculate_TollExemptVehicle(t *testing.T) {
	e := newTestEngine(t)
	ps := []model.Passage{{ID: "p1", VehicleID: "veh-1", VehicleType: model.VehicleBus, Timestamp: "2024-05-20T07:15:00+02:00"}}
	got := mustCalculate(t, e, ps)
	if c := got["p1"]; c.ChargedFee != 0 || c.BaseFee != 0 {
		t.Fatalf("bus charged: %+v", c)
	}
}

func TestCalculate_HighestFeeWithinHour(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("p1", "2024-05-20T07:05:00+02:00"),
		car("p2", "2024-05-20T07:45:00+02:00"),
		car("p3", "2024-05-20T08:10:00+02:00"),
	})
	want := map[string]model.Charge{
		"p1": {PassageID: "p1", BaseFee: 18, ChargedFee: 18, DailyTotal: 18},
		"p2": {PassageID: "p2", BaseFee: 18, ChargedFee: 0, DailyTotal: 18},
		"p3": {PassageID: "p3", BaseFee: 13, ChargedFee: 13, DailyTotal: 31},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestCalculate_DailyCap(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("p1", "2024-05-20T06:05:00+02:00"),
		car("p2", "2024-05-20T07:05:00+02:00"),
		car("p3", "2024-05-20T08:35:00+02:00"),
		car("p4", "2024-05-20T15:35:00+02:00"),
		car("p5", "2024-05-20T17:05:00+02:00"),
	})
	total := 0
	for _, c := range got {
		total += c.ChargedFee
	}
	if total != DailyCap {
		t.Fatalf("total = %d, want %d", total, DailyCap)
	}
	if c := got["p5"]; c.BaseFee != 13 || c.ChargedFee != 8 || c.DailyTotal != 60 {
		t.Fatalf("p5 = %+v, want base 13 charged 8 total 60", c)
	}
}

func TestCalculate_CapReachedChargesZero(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("a", "2024-05-20T06:00:00+02:00"), // 8
		car("b", "2024-05-20T07:00:00+02:00"), // 18
		car("c", "2024-05-20T08:00:00+02:00"), // 13
		car("d", "2024-05-20T09:00:00+02:00"), // 8
		car("e", "2024-05-20T15:00:00+02:00"), // 13 -> 60
		car("f", "2024-05-20T16:00:00+02:00"), // 18 -> capped
	})
	if c := got["e"]; c.ChargedFee != 13 || c.DailyTotal != 60 {
		t.Fatalf("e = %+v", c)
	}
	if c := got["f"]; c.BaseFee != 18 || c.ChargedFee != 0 || c.DailyTotal != 60 {
		t.Fatalf("f = %+v", c)
	}
}

func TestCalculate_Weekend(t *testing.T) {
	e := newTestEngine(t)
	for _, ts := range []string{
		"2024-05-18T09:00:00+02:00", // Saturday
		"2024-05-18T07:30:00+02:00",
		"2024-05-19T16:00:00+02:00", // Sunday
	} {
		got := mustCalculate(t, e, []model.Passage{car("p1", ts)})
		if got["p1"].ChargedFee != 0 {
			t.Errorf("%s charged %d", ts, got["p1"].ChargedFee)
		}
	}
}

func TestCalculate_Holiday(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{car("p1", "2024-06-06T07:30:00+02:00")})
	if c := got["p1"]; c.BaseFee != 0 || c.ChargedFee != 0 {
		t.Fatalf("national day charged: %+v", c)
	}
}

// Tie on base fee: the earlier passage is charged, whatever the input order.
func TestCalculate_TieBreakEarliestWins(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("late", "2024-05-20T08:20:00+02:00"),
		car("early", "2024-05-20T08:00:00+02:00"),
	})
	if got["early"].ChargedFee != 13 || got["late"].ChargedFee != 0 {
		t.Fatalf("got %+v", got)
	}
	if got["early"].DailyTotal != 13 || got["late"].DailyTotal != 13 {
		t.Fatalf("both members should see the post-window total: %+v", got)
	}
}

func TestCalculate_LaterHigherFeeWins(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("p1", "2024-05-20T06:25:00+02:00"), // 8
		car("p2", "2024-05-20T06:40:00+02:00"), // 13
	})
	if got["p1"].ChargedFee != 0 || got["p2"].ChargedFee != 13 {
		t.Fatalf("got %+v", got)
	}
}

func TestOutranks(t *testing.T) {
	t0 := time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)
	early := entry{at: t0, baseFee: 13}
	late := entry{at: t0.Add(10 * time.Minute), baseFee: 13}
	higher := entry{at: t0.Add(20 * time.Minute), baseFee: 18}

	cases := []struct {
		name string
		a, b entry
		want bool
	}{
		{"earlier beats later on tie", early, late, true},
		{"later loses on tie", late, early, false},
		{"higher fee beats earlier", higher, early, true},
		{"lower fee loses", early, higher, false},
		{"equal entry does not outrank", early, early, false},
	}
	for _, tc := range cases {
		if got := outranks(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: outranks = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// The window is anchored at its first member: a passage 50 minutes after the
// second member but 100 minutes after the first opens a new window.
func TestCalculate_FixedAnchorWindow(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("p1", "2024-05-20T06:00:00+02:00"), // 8
		car("p2", "2024-05-20T06:50:00+02:00"), // 13
		car("p3", "2024-05-20T07:40:00+02:00"), // 18
	})
	if got["p1"].ChargedFee != 0 || got["p2"].ChargedFee != 13 || got["p3"].ChargedFee != 18 {
		t.Fatalf("got %+v", got)
	}
	if got["p3"].DailyTotal != 31 {
		t.Fatalf("daily total = %d, want 31", got["p3"].DailyTotal)
	}
}

func TestCalculate_WindowBoundaryIsExclusive(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("p1", "2024-05-20T10:00:00+02:00"),
		car("p2", "2024-05-20T10:59:59+02:00"),
		car("p3", "2024-05-20T11:00:00+02:00"),
	})
	if got["p1"].ChargedFee != 8 || got["p2"].ChargedFee != 0 || got["p3"].ChargedFee != 8 {
		t.Fatalf("got %+v", got)
	}
}

// A free passage seen while a window is still open reports the total before that
// window is charged.
func TestCalculate_ZeroFeeInsideOpenWindow(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("a", "2024-05-20T06:00:00+02:00"), // 8
		car("b", "2024-05-20T17:55:00+02:00"), // 13
		car("c", "2024-05-20T18:35:00+02:00"), // free
	})
	if c := got["c"]; c.BaseFee != 0 || c.ChargedFee != 0 || c.DailyTotal != 8 {
		t.Fatalf("c = %+v, want daily total 8", c)
	}
	if c := got["b"]; c.ChargedFee != 13 || c.DailyTotal != 21 {
		t.Fatalf("b = %+v", c)
	}
}

func TestCalculate_GroupsAreIndependent(t *testing.T) {
	e := newTestEngine(t)
	ps := []model.Passage{
		car("p1", "2024-05-20T07:05:00+02:00"),
		{ID: "p2", VehicleID: "veh-2", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T07:10:00+02:00"},
		car("p3", "2024-05-21T07:15:00+02:00"),
	}
	got := mustCalculate(t, e, ps)
	for _, id := range []string{"p1", "p2", "p3"} {
		if c := got[id]; c.ChargedFee != 18 || c.DailyTotal != 18 {
			t.Errorf("%s = %+v", id, c)
		}
	}
}

// Passages on consecutive civil days never share a daily total.
func TestCalculate_CivilDayBoundary(t *testing.T) {
	e := newTestEngine(t)
	got := mustCalculate(t, e, []model.Passage{
		car("p1", "2024-05-20T15:40:00+02:00"), // 18
		car("p2", "2024-05-21T04:10:00Z"),      // 06:10 local on the 21st, 8
	})
	if got["p1"].DailyTotal != 18 || got["p2"].DailyTotal != 8 {
		t.Fatalf("got %+v", got)
	}
}

func TestCalculate_InvalidTimestamp(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Calculate([]model.Passage{
		car("ok", "2024-05-20T07:05:00+02:00"),
		car("bad", "yesterday morning"),
	})
	if !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("err = %v, want ErrInvalidTimestamp", err)
	}
	var te *TimestampError
	if !errors.As(err, &te) || te.PassageID != "bad" {
		t.Fatalf("err = %#v, want TimestampError for passage bad", err)
	}
}

func TestCalculate_UnknownVehicleTypePanics(t *testing.T) {
	e := newTestEngine(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unvalidated vehicle type")
		}
	}()
	_, _ = e.Calculate([]model.Passage{{ID: "p1", VehicleID: "v", VehicleType: "spaceship", Timestamp: "2024-05-20T07:05:00+02:00"}})
}

func TestCalculate_EmptyBatch(t *testing.T) {
	e := newTestEngine(t)
	got, err := e.Calculate(nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func randomBatch(r *rand.Rand, n int) []model.Passage {
	types := model.VehicleTypes()
	base := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC) // Friday through Monday
	out := make([]model.Passage, 0, n)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(r.Intn(4*24*60)) * time.Minute)
		out = append(out, model.Passage{
			ID:          fmt.Sprintf("p%03d", i),
			VehicleID:   fmt.Sprintf("veh-%d", r.Intn(3)),
			VehicleType: types[r.Intn(len(types))],
			Timestamp:   at.Format(time.RFC3339),
		})
	}
	return out
}

func TestCalculate_Invariants(t *testing.T) {
	e := newTestEngine(t)
	cal := e.Calendar()
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		ps := randomBatch(r, 40)
		got := mustCalculate(t, e, ps)

		sums := map[string]int{}
		for _, p := range ps {
			c := got[p.ID]
			at, _ := ParseTimestamp(p.Timestamp)
			if p.VehicleType.TollExempt() || cal.IsWeekend(at) || cal.IsHoliday(at) {
				if c.ChargedFee != 0 {
					t.Fatalf("round %d: exempt passage %s charged %d", round, p.ID, c.ChargedFee)
				}
			}
			if c.ChargedFee > c.BaseFee {
				t.Fatalf("round %d: %s charged above base: %+v", round, p.ID, c)
			}
			if c.DailyTotal > DailyCap {
				t.Fatalf("round %d: %s daily total %d", round, p.ID, c.DailyTotal)
			}
			sums[p.VehicleID+"|"+cal.LocalDateKey(at)] += c.ChargedFee
		}
		for k, s := range sums {
			if s > DailyCap {
				t.Fatalf("round %d: group %s charged %d", round, k, s)
			}
		}
	}
}

func TestCalculate_OrderIndependentAndIdempotent(t *testing.T) {
	e := newTestEngine(t)
	r := rand.New(rand.NewSource(42))
	ps := randomBatch(r, 60)
	// Duplicate instants exercise the id tie-break in sorting.
	ps = append(ps, model.Passage{ID: "dup-b", VehicleID: "veh-dup", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T07:05:00+02:00"})
	ps = append(ps, model.Passage{ID: "dup-a", VehicleID: "veh-dup", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T05:05:00Z"})

	first := mustCalculate(t, e, ps)
	again := mustCalculate(t, e, ps)
	if !reflect.DeepEqual(first, again) {
		t.Fatal("second run differs")
	}
	for i := 0; i < 10; i++ {
		shuffled := append([]model.Passage(nil), ps...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := mustCalculate(t, e, shuffled); !reflect.DeepEqual(first, got) {
			t.Fatalf("shuffle %d differs", i)
		}
	}
	if first["dup-a"].ChargedFee != 18 || first["dup-b"].ChargedFee != 0 {
		t.Fatalf("equal instants: dup-a=%+v dup-b=%+v", first["dup-a"], first["dup-b"])
	}
}

func TestCalculate_CacheMatchesRecompute(t *testing.T) {
	cache := NewMemoryCache(0)
	checkCacheMatchesRecompute(t, cache)
	if cache.Len() == 0 {
		t.Fatal("cache was never filled")
	}
}

// checkCacheMatchesRecompute runs the same batches through a cached and an
// uncached engine and requires identical results.
func checkCacheMatchesRecompute(t *testing.T, cache GroupCache) {
	t.Helper()
	cached := newTestEngine(t, WithCache(cache))
	plain := newTestEngine(t)
	r := rand.New(rand.NewSource(3))
	ps := randomBatch(r, 50)

	want := mustCalculate(t, plain, ps)
	for i := 0; i < 3; i++ {
		if got := mustCalculate(t, cached, ps); !reflect.DeepEqual(want, got) {
			t.Fatalf("run %d: cached result differs", i)
		}
	}

	// Changing one group must not serve its stale charges.
	ps = append(ps, car("extra", "2024-05-20T07:06:00+02:00"))
	want = mustCalculate(t, plain, ps)
	if got := mustCalculate(t, cached, ps); !reflect.DeepEqual(want, got) {
		t.Fatal("cached result differs after adding a passage")
	}
}
