package billing

import (
	"testing"
	"time"

	"github.com/sotocloud/sotovision/internal/zone"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFromStates_StockRecords(t *testing.T) {
	states := map[string]*zone.State{
		"Gorengan 1": {Zone: "Gorengan 1", Type: zone.TypeStock, Stock: &zone.StockState{
			Counts: map[string]int{"bakwan": 2, "tahu_goreng": 1},
			Total:  3,
		}},
	}

	records := NewEmitter().FromStates("cam-1", states, now)
	want := []struct {
		item string
		qty  int
	}{
		{"GORENGAN_BAKWAN", 2},
		{"GORENGAN_TAHU_GORENG", 1},
		{"GORENGAN_TOTAL_STOCK", 3},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(records), len(want), records)
	}
	for i, w := range want {
		r := records[i]
		if r.Item != w.item || r.Qty != w.qty {
			t.Errorf("record %d: got (%s, %d), want (%s, %d)", i, r.Item, r.Qty, w.item, w.qty)
		}
		if r.CameraID != "cam-1" || r.Zone != "Gorengan 1" || !r.Timestamp.Equal(now) {
			t.Errorf("record %d: wrong envelope %+v", i, r)
		}
	}
}

// The aggregate record always equals the sum of the per-class records.
func TestFromStates_TotalMatchesSum(t *testing.T) {
	states := map[string]*zone.State{
		"Gorengan 1": {Zone: "Gorengan 1", Type: zone.TypeStock, Stock: &zone.StockState{
			Counts: map[string]int{"bakwan": 4, "tempe_goreng": 2, "molen": 1},
			Total:  7,
		}},
	}

	records := NewEmitter().FromStates("cam-1", states, now)
	sum, total := 0, -1
	for _, r := range records {
		if r.Item == TotalStockItem {
			total = r.Qty
		} else {
			sum += r.Qty
		}
	}
	if total != sum {
		t.Errorf("total %d != sum %d", total, sum)
	}
}

func TestFromStates_EmptyStockStillEmitsTotal(t *testing.T) {
	states := map[string]*zone.State{
		"Gorengan 1": {Zone: "Gorengan 1", Type: zone.TypeStock, Stock: &zone.StockState{
			Status: zone.StatusHabis,
			Counts: map[string]int{},
		}},
	}

	records := NewEmitter().FromStates("cam-1", states, now)
	if len(records) != 1 || records[0].Item != TotalStockItem || records[0].Qty != 0 {
		t.Fatalf("expected single zero total record, got %+v", records)
	}
}

func TestFromStates_TableRecords(t *testing.T) {
	states := map[string]*zone.State{
		"Meja 1": {Zone: "Meja 1", Type: zone.TypeTable, Table: &zone.TableState{
			Status: zone.StatusTerisi,
			Items:  map[string]int{"mangkok": 2, "gelas": 1},
		}},
		"Meja 2": {Zone: "Meja 2", Type: zone.TypeTable, Table: &zone.TableState{
			Status: zone.StatusKotor,
			Items:  map[string]int{"mangkok": 1},
		}},
	}

	records := NewEmitter().FromStates("cam-1", states, now)
	// Only the occupied table bills; the dirty one has already been
	// billed during its sitting.
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(records), records)
	}
	if records[0].Item != "GELAS" || records[0].Qty != 1 {
		t.Errorf("record 0: %+v", records[0])
	}
	if records[1].Item != "MANGKOK" || records[1].Qty != 2 {
		t.Errorf("record 1: %+v", records[1])
	}
}

func TestFromStates_Deterministic(t *testing.T) {
	states := map[string]*zone.State{
		"Gorengan 2": {Zone: "Gorengan 2", Type: zone.TypeStock, Stock: &zone.StockState{
			Counts: map[string]int{"molen": 1, "bakwan": 2, "tahu_goreng": 3}, Total: 6,
		}},
		"Gorengan 1": {Zone: "Gorengan 1", Type: zone.TypeStock, Stock: &zone.StockState{
			Counts: map[string]int{"risol": 5}, Total: 5,
		}},
	}

	e := NewEmitter()
	first := e.FromStates("cam-1", states, now)
	for i := 0; i < 10; i++ {
		again := e.FromStates("cam-1", states, now)
		if len(again) != len(first) {
			t.Fatal("record count changed between runs")
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d record %d differs: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
	if first[0].Zone != "Gorengan 1" {
		t.Errorf("zones not ordered: %+v", first[0])
	}
}
