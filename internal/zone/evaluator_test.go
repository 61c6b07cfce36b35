package zone

import (
	"reflect"
	"testing"

	"github.com/sotocloud/sotovision/internal/detect"
)

func tableZone() []Zone {
	return []Zone{{Name: "Meja 1", Type: TypeTable, Coords: [4]float64{0.1, 0.1, 0.4, 0.4}}}
}

func evalTick(t *testing.T, e *Evaluator, zones []Zone, prev map[string]*State, dets []detect.Detection) map[string]*State {
	t.Helper()
	return e.Evaluate(zones, prev, e.Assign(zones, dets))
}

// Exercises the full table lifecycle: occupied, abandoned with items,
// dirty timer ramp, then cleared.
func TestTableStateMachine_Lifecycle(t *testing.T) {
	e := NewEvaluator(Config{DirtyTicks: 3})
	zones := tableZone()

	// Tick 1: person + plate -> TERISI.
	states := evalTick(t, e, zones, nil, []detect.Detection{
		detect.At(detect.ClassPerson, 0.2, 0.2),
		detect.At("mangkok", 0.25, 0.25),
	})
	tbl := states["Meja 1"].Table
	if tbl.Status != StatusTerisi || tbl.PersonCount != 1 || tbl.ItemCount != 1 {
		t.Fatalf("tick1: got %+v, want TERISI person=1 item=1", tbl)
	}

	// Tick 2: plate only -> KOTOR, timer 1.
	states = evalTick(t, e, zones, states, []detect.Detection{
		detect.At("mangkok", 0.25, 0.25),
	})
	tbl = states["Meja 1"].Table
	if tbl.Status != StatusKotor || tbl.DirtyTimer != 1 || tbl.NeedsCleaning {
		t.Fatalf("tick2: got %+v, want KOTOR timer=1", tbl)
	}

	// Ticks 3-4: still dirty; needs_cleaning latches at timer 3.
	for tick := 3; tick <= 4; tick++ {
		states = evalTick(t, e, zones, states, []detect.Detection{
			detect.At("mangkok", 0.25, 0.25),
		})
	}
	tbl = states["Meja 1"].Table
	if tbl.DirtyTimer != 3 || !tbl.NeedsCleaning {
		t.Fatalf("tick4: got timer=%d needs_cleaning=%v, want 3/true", tbl.DirtyTimer, tbl.NeedsCleaning)
	}

	// Tick 5: cleared -> BERSIH.
	states = evalTick(t, e, zones, states, nil)
	tbl = states["Meja 1"].Table
	if tbl.Status != StatusBersih || tbl.DirtyTimer != 0 || tbl.NeedsCleaning {
		t.Fatalf("tick5: got %+v, want BERSIH", tbl)
	}
}

func TestTableStateMachine_ItemsOnlyOccupies(t *testing.T) {
	e := NewEvaluator(Config{})
	zones := tableZone()

	// Items appearing on a clean table mean it is in use.
	states := evalTick(t, e, zones, nil, []detect.Detection{
		detect.At("gelas", 0.2, 0.2),
	})
	if got := states["Meja 1"].Table.Status; got != StatusTerisi {
		t.Fatalf("expected TERISI from items alone, got %s", got)
	}
}

func TestTableStateMachine_KotorStaysUntilCleared(t *testing.T) {
	e := NewEvaluator(Config{DirtyTicks: 3})
	zones := tableZone()

	states := map[string]*State{
		"Meja 1": {Zone: "Meja 1", Type: TypeTable, Table: &TableState{
			Status: StatusKotor, ItemCount: 1, DirtyTimer: 5, NeedsCleaning: true,
		}},
	}

	// A hand/person passing through while items remain does not reset the
	// state; it is the items disappearing that signals cleaning.
	states = evalTick(t, e, zones, states, []detect.Detection{
		detect.At(detect.ClassPerson, 0.2, 0.2),
		detect.At("mangkok", 0.25, 0.25),
	})
	if got := states["Meja 1"].Table.Status; got != StatusKotor {
		t.Fatalf("expected KOTOR while items remain, got %s", got)
	}

	states = evalTick(t, e, zones, states, nil)
	if got := states["Meja 1"].Table.Status; got != StatusBersih {
		t.Fatalf("expected BERSIH after items cleared, got %s", got)
	}
}

func TestTableStateMachine_StaffNotOccupancy(t *testing.T) {
	e := NewEvaluator(Config{})
	zones := tableZone()

	staff := detect.At(detect.ClassPerson, 0.2, 0.2)
	staff.Identity = &detect.IdentityTag{Kind: "staff", Name: "Budi"}

	states := evalTick(t, e, zones, nil, []detect.Detection{staff})
	tbl := states["Meja 1"].Table
	if tbl.PersonCount != 0 {
		t.Errorf("staff counted toward occupancy: %d", tbl.PersonCount)
	}
	if tbl.Customers.Staff != 1 {
		t.Errorf("staff not recorded: %+v", tbl.Customers)
	}
	if tbl.Status != StatusBersih {
		t.Errorf("staff wiping a table should not occupy it, got %s", tbl.Status)
	}
}

func TestQueueLabels(t *testing.T) {
	e := NewEvaluator(Config{QueueLimit: 4})
	zones := []Zone{{Name: "Kasir", Type: TypeKasir, Coords: [4]float64{0, 0, 1, 1}}}

	tests := []struct {
		persons int
		label   string
	}{
		{0, QueueEmpty},
		{1, QueueNormal},
		{4, QueueNormal},
		{5, QueueFull},
	}

	for _, tt := range tests {
		var dets []detect.Detection
		for i := 0; i < tt.persons; i++ {
			dets = append(dets, detect.At(detect.ClassPerson, 0.1+float64(i)*0.1, 0.5))
		}
		states := evalTick(t, e, zones, nil, dets)
		q := states["Kasir"].Queue
		if q.PersonCount != tt.persons || q.Label != tt.label {
			t.Errorf("persons=%d: got count=%d label=%q, want label=%q",
				tt.persons, q.PersonCount, q.Label, tt.label)
		}
	}
}

func TestStockZone_PerClassCounts(t *testing.T) {
	e := NewEvaluator(Config{StockClasses: map[string]bool{"bakwan": true, "tahu_goreng": true}})
	zones := []Zone{{Name: "Gorengan 1", Type: TypeStock, Coords: [4]float64{0, 0, 1, 1}}}

	states := evalTick(t, e, zones, nil, []detect.Detection{
		detect.At("bakwan", 0.1, 0.1),
		detect.At("bakwan", 0.2, 0.1),
		detect.At("tahu_goreng", 0.3, 0.1),
	})

	st := states["Gorengan 1"].Stock
	if st.Counts["bakwan"] != 2 || st.Counts["tahu_goreng"] != 1 {
		t.Errorf("wrong counts: %v", st.Counts)
	}
	if st.Total != 3 {
		t.Errorf("expected total 3, got %d", st.Total)
	}

	// Total always equals the sum of per-class counts.
	sum := 0
	for _, n := range st.Counts {
		sum += n
	}
	if sum != st.Total {
		t.Errorf("total %d != sum of counts %d", st.Total, sum)
	}
}

func TestStockZone_FallbackProxiesCounted(t *testing.T) {
	e := NewEvaluator(Config{})
	zones := []Zone{{Name: "Gorengan 1", Type: TypeStock, Coords: [4]float64{0, 0, 1, 1}}}

	states := evalTick(t, e, zones, nil, []detect.Detection{
		detect.At("wadah_mangkok", 0.1, 0.1),
		detect.At("wadah_gelas", 0.2, 0.1),
	})

	if got := states["Gorengan 1"].Stock.Total; got != 2 {
		t.Errorf("expected container proxies counted, total=%d", got)
	}
}

func TestStockZone_EmptyAndBeingTaken(t *testing.T) {
	e := NewEvaluator(Config{})
	zones := []Zone{{Name: "Gorengan 1", Type: TypeStock, Coords: [4]float64{0, 0, 1, 1}}}

	states := evalTick(t, e, zones, nil, nil)
	if got := states["Gorengan 1"].Stock.Status; got != StatusHabis {
		t.Errorf("expected HABIS with no stock, got %q", got)
	}

	states = evalTick(t, e, zones, nil, []detect.Detection{
		detect.At(detect.ClassHand, 0.5, 0.5),
		detect.At("gorengan_3", 0.2, 0.2),
	})
	st := states["Gorengan 1"].Stock
	if !st.BeingTaken {
		t.Error("expected being-taken condition from hand in zone")
	}
	if st.Total != 1 {
		t.Errorf("hand must not affect counts, total=%d", st.Total)
	}
}

func TestDapurZone_IntruderDetection(t *testing.T) {
	e := NewEvaluator(Config{})
	zones := []Zone{{Name: "Dapur", Type: TypeDapur, Coords: [4]float64{0, 0, 1, 1}}}

	staff := detect.At(detect.ClassPerson, 0.2, 0.2)
	staff.Identity = &detect.IdentityTag{Kind: "staff", Name: "Siti"}
	stranger := detect.At(detect.ClassPerson, 0.7, 0.7)

	states := evalTick(t, e, zones, nil, []detect.Detection{staff, stranger})
	d := states["Dapur"].Dapur
	if len(d.StaffNames) != 1 || d.StaffNames[0] != "Siti" {
		t.Errorf("wrong staff names: %v", d.StaffNames)
	}
	if d.Intruders != 1 {
		t.Errorf("expected 1 intruder, got %d", d.Intruders)
	}
}

// Zero thresholds are literal, not placeholders for the defaults: a table
// needs cleaning on its first dirty tick and one queued person fills the
// queue.
func TestZeroThresholdsHonored(t *testing.T) {
	e := NewEvaluator(Config{DirtyTicks: 0, QueueLimit: 0})
	zones := []Zone{
		{Name: "Meja 1", Type: TypeTable, Coords: [4]float64{0, 0, 0.5, 1}},
		{Name: "Kasir", Type: TypeKasir, Coords: [4]float64{0.5, 0, 1, 1}},
	}

	prev := map[string]*State{
		"Meja 1": {Zone: "Meja 1", Type: TypeTable, Table: &TableState{
			Status: StatusTerisi,
		}},
	}
	states := evalTick(t, e, zones, prev, []detect.Detection{
		detect.At("mangkok", 0.25, 0.5),
		detect.At(detect.ClassPerson, 0.75, 0.5),
	})

	tbl := states["Meja 1"].Table
	if tbl.Status != StatusKotor || tbl.DirtyTimer != 1 || !tbl.NeedsCleaning {
		t.Errorf("dirty_ticks=0: got %+v, want KOTOR needing cleaning", tbl)
	}
	if got := states["Kasir"].Queue.Label; got != QueueFull {
		t.Errorf("queue_limit=0: got label %q, want %q", got, QueueFull)
	}
}

func TestEvaluate_UnknownTypeInert(t *testing.T) {
	e := NewEvaluator(Config{})
	zones := []Zone{{Name: "Gudang", Type: "gudang", Coords: [4]float64{0, 0, 1, 1}}}

	states := evalTick(t, e, zones, nil, []detect.Detection{
		detect.At(detect.ClassPerson, 0.5, 0.5),
	})
	if _, ok := states["Gudang"]; ok {
		t.Error("unknown zone type must not produce state")
	}
}

// Re-evaluating a tick with identical detections and identical prior state
// yields identical next state.
func TestEvaluate_Idempotent(t *testing.T) {
	e := NewEvaluator(Config{DirtyTicks: 3})
	zones := tableZone()

	prev := map[string]*State{
		"Meja 1": {Zone: "Meja 1", Type: TypeTable, Table: &TableState{
			Status: StatusKotor, ItemCount: 1, DirtyTimer: 2,
		}},
	}
	dets := []detect.Detection{detect.At("mangkok", 0.25, 0.25)}

	first := evalTick(t, e, zones, prev, dets)
	second := evalTick(t, e, zones, prev, dets)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different states:\n%+v\n%+v", first, second)
	}
	// prev must not have been mutated.
	if prev["Meja 1"].Table.DirtyTimer != 2 {
		t.Error("Evaluate mutated previous state")
	}
}

func TestState_Clone(t *testing.T) {
	s := &State{Zone: "Gorengan 1", Type: TypeStock, Stock: &StockState{
		Counts: map[string]int{"bakwan": 2}, Total: 2,
	}}

	c := s.Clone()
	c.Stock.Counts["bakwan"] = 99
	if s.Stock.Counts["bakwan"] != 2 {
		t.Error("clone shares counts map with original")
	}
}
