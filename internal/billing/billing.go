// Package billing derives billing records from evaluated zone states.
package billing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sotocloud/sotovision/internal/zone"
)

// TotalStockItem is the aggregate record emitted alongside the
// per-class stock records.
const TotalStockItem = "GORENGAN_TOTAL_STOCK"

// Record is one billable observation. Item is an uppercase billing key,
// e.g. GORENGAN_BAKWAN or MANGKOK.
type Record struct {
	CameraID  string    `json:"camera_id"`
	Zone      string    `json:"zone"`
	Item      string    `json:"item"`
	Qty       int       `json:"qty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter turns zone states into billing records. It holds no state of
// its own; identical inputs produce identical records.
type Emitter struct{}

func NewEmitter() *Emitter { return &Emitter{} }

// FromStates emits records for every stock and occupied table zone.
// Stock zones produce one record per fried-food class plus the
// aggregate total; occupied tables produce one record per dining item
// class. Output order is deterministic.
func (e *Emitter) FromStates(cameraID string, states map[string]*zone.State, now time.Time) []Record {
	var out []Record
	for _, name := range sortedZones(states) {
		st := states[name]
		switch st.Type {
		case zone.TypeStock:
			out = append(out, e.stockRecords(cameraID, name, st.Stock, now)...)
		case zone.TypeTable:
			out = append(out, e.tableRecords(cameraID, name, st.Table, now)...)
		}
	}
	return out
}

func (e *Emitter) stockRecords(cameraID, zoneName string, st *zone.StockState, now time.Time) []Record {
	if st == nil {
		return nil
	}
	out := make([]Record, 0, len(st.Counts)+1)
	for _, class := range sortedKeys(st.Counts) {
		out = append(out, Record{
			CameraID:  cameraID,
			Zone:      zoneName,
			Item:      stockItem(class),
			Qty:       st.Counts[class],
			Timestamp: now,
		})
	}
	out = append(out, Record{
		CameraID:  cameraID,
		Zone:      zoneName,
		Item:      TotalStockItem,
		Qty:       st.Total,
		Timestamp: now,
	})
	return out
}

func (e *Emitter) tableRecords(cameraID, zoneName string, st *zone.TableState, now time.Time) []Record {
	if st == nil || st.Status != zone.StatusTerisi {
		return nil
	}
	out := make([]Record, 0, len(st.Items))
	for _, class := range sortedKeys(st.Items) {
		out = append(out, Record{
			CameraID:  cameraID,
			Zone:      zoneName,
			Item:      strings.ToUpper(class),
			Qty:       st.Items[class],
			Timestamp: now,
		})
	}
	return out
}

// stockItem maps a detector class to its billing key, GORENGAN_BAKWAN
// for "bakwan" and so on.
func stockItem(class string) string {
	return fmt.Sprintf("GORENGAN_%s", strings.ToUpper(class))
}

func sortedZones(states map[string]*zone.State) []string {
	names := lo.Keys(states)
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]int) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
