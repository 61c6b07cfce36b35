// Package alert derives operational alerts from evaluated zone states.
package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sotocloud/sotovision/internal/zone"
)

// Alert types. Alerts are level-triggered: they are emitted every tick
// the condition holds, and the event log deduplicates on write.
const (
	TypeLowStock      = "low_stock"
	TypeItemTaken     = "item_taken"
	TypeNeedsCleaning = "needs_cleaning"
	TypeQueueFull     = "queue_full"
	TypeIntruder      = "intruder"
	TypeStaffSeen     = "staff_seen"
)

type Alert struct {
	CameraID  string    `json:"camera_id"`
	Zone      string    `json:"zone"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Config struct {
	// MinStock is the fried-food count below which a stock zone raises
	// low_stock. Zero turns the alert off; a negative value falls back
	// to the production default of 3.
	MinStock int
}

type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	if cfg.MinStock < 0 {
		cfg.MinStock = 3
	}
	return &Detector{cfg: cfg}
}

// FromStates returns every alert condition currently holding. Output
// order is deterministic.
func (d *Detector) FromStates(cameraID string, states map[string]*zone.State, now time.Time) []Alert {
	var out []Alert
	names := lo.Keys(states)
	sort.Strings(names)

	for _, name := range names {
		st := states[name]
		mk := func(typ, msg string) {
			out = append(out, Alert{
				CameraID: cameraID, Zone: name, Type: typ, Message: msg, Timestamp: now,
			})
		}

		switch st.Type {
		case zone.TypeTable:
			if st.Table.NeedsCleaning {
				mk(TypeNeedsCleaning, fmt.Sprintf("%s kotor, perlu dibersihkan", name))
			}
		case zone.TypeKasir, zone.TypeQueue:
			if st.Queue.Label == zone.QueueFull {
				mk(TypeQueueFull, fmt.Sprintf("antrian %s penuh (%d orang)", name, st.Queue.PersonCount))
			}
		case zone.TypeStock:
			if st.Stock.Total < d.cfg.MinStock {
				msg := fmt.Sprintf("stok %s menipis (%d tersisa)", name, st.Stock.Total)
				if st.Stock.Total == 0 {
					msg = fmt.Sprintf("stok %s HABIS", name)
				}
				mk(TypeLowStock, msg)
			}
			if st.Stock.BeingTaken {
				mk(TypeItemTaken, fmt.Sprintf("gorengan %s SEDANG_DIAMBIL", name))
			}
		case zone.TypeDapur:
			if st.Dapur.Intruders > 0 {
				mk(TypeIntruder, fmt.Sprintf("%d orang tak dikenal di %s", st.Dapur.Intruders, name))
			}
			if len(st.Dapur.StaffNames) > 0 {
				mk(TypeStaffSeen, fmt.Sprintf("staf di %s: %s", name, strings.Join(st.Dapur.StaffNames, ", ")))
			}
		}
	}
	return out
}
