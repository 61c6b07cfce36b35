package alert

import (
	"testing"
	"time"

	"github.com/sotocloud/sotovision/internal/zone"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func stockStates(total int) map[string]*zone.State {
	return map[string]*zone.State{
		"Gorengan 1": {Zone: "Gorengan 1", Type: zone.TypeStock, Stock: &zone.StockState{
			Total: total,
		}},
	}
}

func alertTypes(alerts []Alert) []string {
	var out []string
	for _, a := range alerts {
		out = append(out, a.Type)
	}
	return out
}

func hasType(alerts []Alert, typ string) bool {
	for _, a := range alerts {
		if a.Type == typ {
			return true
		}
	}
	return false
}

// low_stock fires exactly when the total is below the threshold. A
// threshold of zero means the alert never fires.
func TestLowStock_ThresholdBoundary(t *testing.T) {
	for _, threshold := range []int{0, 1, 3, 7} {
		d := NewDetector(Config{MinStock: threshold})
		for total := 0; total <= threshold+2; total++ {
			alerts := d.FromStates("cam-1", stockStates(total), now)
			got := hasType(alerts, TypeLowStock)
			want := total < threshold
			if got != want {
				t.Errorf("threshold=%d total=%d: low_stock=%v, want %v", threshold, total, got, want)
			}
		}
	}
}

func TestItemTaken(t *testing.T) {
	states := stockStates(5)
	states["Gorengan 1"].Stock.BeingTaken = true

	alerts := NewDetector(Config{MinStock: 3}).FromStates("cam-1", states, now)
	if !hasType(alerts, TypeItemTaken) {
		t.Errorf("expected item_taken, got %v", alertTypes(alerts))
	}
	if hasType(alerts, TypeLowStock) {
		t.Errorf("total 5 must not raise low_stock: %v", alertTypes(alerts))
	}
}

func TestNeedsCleaning(t *testing.T) {
	states := map[string]*zone.State{
		"Meja 1": {Zone: "Meja 1", Type: zone.TypeTable, Table: &zone.TableState{
			Status: zone.StatusKotor, DirtyTimer: 3, NeedsCleaning: true,
		}},
		"Meja 2": {Zone: "Meja 2", Type: zone.TypeTable, Table: &zone.TableState{
			Status: zone.StatusKotor, DirtyTimer: 1,
		}},
	}

	alerts := NewDetector(Config{}).FromStates("cam-1", states, now)
	if len(alerts) != 1 || alerts[0].Zone != "Meja 1" || alerts[0].Type != TypeNeedsCleaning {
		t.Fatalf("expected one needs_cleaning for Meja 1, got %+v", alerts)
	}
}

func TestQueueFull(t *testing.T) {
	states := map[string]*zone.State{
		"Kasir": {Zone: "Kasir", Type: zone.TypeKasir, Queue: &zone.QueueState{
			PersonCount: 6, Label: zone.QueueFull,
		}},
	}

	alerts := NewDetector(Config{}).FromStates("cam-1", states, now)
	if !hasType(alerts, TypeQueueFull) {
		t.Errorf("expected queue_full, got %v", alertTypes(alerts))
	}

	states["Kasir"].Queue.Label = zone.QueueNormal
	if alerts := NewDetector(Config{}).FromStates("cam-1", states, now); len(alerts) != 0 {
		t.Errorf("normal queue must not alert: %+v", alerts)
	}
}

func TestDapurAlerts(t *testing.T) {
	states := map[string]*zone.State{
		"Dapur": {Zone: "Dapur", Type: zone.TypeDapur, Dapur: &zone.DapurState{
			StaffNames: []string{"Budi"}, Intruders: 2,
		}},
	}

	alerts := NewDetector(Config{}).FromStates("cam-1", states, now)
	if !hasType(alerts, TypeIntruder) || !hasType(alerts, TypeStaffSeen) {
		t.Fatalf("expected intruder and staff_seen, got %v", alertTypes(alerts))
	}
}

func TestLevelTriggered_SameInputSameAlerts(t *testing.T) {
	d := NewDetector(Config{MinStock: 3})
	states := stockStates(1)

	first := d.FromStates("cam-1", states, now)
	second := d.FromStates("cam-1", states, now)
	if len(first) != len(second) {
		t.Fatal("alert count changed for identical states")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("alert %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
