package zone

import (
	"log"
	"sort"
	"strings"

	"github.com/sotocloud/sotovision/internal/detect"
)

// Config tunes the evaluator's state machines.
type Config struct {
	// DirtyTicks is the number of consecutive dirty ticks before a table
	// needs cleaning.
	DirtyTicks int
	// QueueLimit is the highest person count still labeled normal.
	QueueLimit int
	// StockClasses is the set of item names counted in stock zones.
	// Fallback container proxies (wadah_*) are always counted.
	StockClasses map[string]bool
}

// Evaluator advances zone state machines. It holds no per-camera state
// itself: Evaluate is a pure function of (zones, previous states,
// detections), which keeps tick re-runs idempotent.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an Evaluator with the given thresholds. Zero values
// are honored (DirtyTicks 0 flags needs_cleaning on the first dirty tick,
// QueueLimit 0 labels any queued person full); negative values fall back to
// the production defaults.
func NewEvaluator(cfg Config) *Evaluator {
	if cfg.DirtyTicks < 0 {
		cfg.DirtyTicks = 3
	}
	if cfg.QueueLimit < 0 {
		cfg.QueueLimit = 4
	}
	return &Evaluator{cfg: cfg}
}

// Assign sets the Zone field on each detection whose fractional centroid
// falls inside a zone. A detection belongs to at most one zone: the first
// matching zone in the configured order wins, which is the deterministic
// tie-break for overlapping zones. Malformed zones never match.
func (e *Evaluator) Assign(zones []Zone, dets []detect.Detection) []detect.Detection {
	valid := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			log.Printf("skipping zone %q: %v", z.Name, err)
			continue
		}
		valid = append(valid, z)
	}

	for i := range dets {
		dets[i].Zone = ""
		for _, z := range valid {
			if z.Contains(dets[i].NormCentroid) {
				dets[i].Zone = z.Name
				break
			}
		}
	}
	return dets
}

// Evaluate advances every zone's state machine by one tick. prev holds the
// states from the previous tick keyed by zone name and is not mutated; the
// returned map is freshly built. Detections must already be zone-assigned.
func (e *Evaluator) Evaluate(zones []Zone, prev map[string]*State, dets []detect.Detection) map[string]*State {
	next := make(map[string]*State, len(zones))

	for _, z := range zones {
		if err := z.Validate(); err != nil {
			log.Printf("skipping zone %q: %v", z.Name, err)
			continue
		}

		inZone := detectionsIn(z.Name, dets)

		switch {
		case z.Type == TypeTable:
			next[z.Name] = &State{
				Zone:  z.Name,
				Type:  z.Type,
				Table: e.evalTable(prev[z.Name], inZone),
			}
		case z.Type.isQueue():
			next[z.Name] = &State{
				Zone:  z.Name,
				Type:  z.Type,
				Queue: e.evalQueue(inZone),
			}
		case z.Type == TypeStock:
			next[z.Name] = &State{
				Zone:  z.Name,
				Type:  z.Type,
				Stock: e.evalStock(inZone),
			}
		case z.Type == TypeDapur:
			next[z.Name] = &State{
				Zone:  z.Name,
				Type:  z.Type,
				Dapur: e.evalDapur(inZone),
			}
		default:
			// Unknown zone types are inert: assignment already happened,
			// no state machine advances.
		}
	}

	return next
}

// evalTable runs the table state machine for one tick.
//
//	BERSIH -> TERISI  when a person or items appear
//	TERISI -> KOTOR   when persons drop to 0 while items remain
//	KOTOR  -> BERSIH  when items drop to 0 (table cleared)
//	KOTOR stays KOTOR otherwise; the dirty timer increments each tick and
//	needs_cleaning latches once it reaches the configured threshold.
func (e *Evaluator) evalTable(prev *State, dets []detect.Detection) *TableState {
	persons := 0
	items := map[string]int{}
	customers := CustomerCounts{}

	for _, d := range dets {
		switch {
		case d.IsPerson():
			countIdentity(&customers, d.Identity)
			// Staff never count toward occupancy.
			if !isStaff(d.Identity) {
				persons++
			}
		case d.IsDiningItem():
			items[d.Class]++
		}
	}
	itemCount := 0
	for _, n := range items {
		itemCount += n
	}

	status := StatusBersih
	timer := 0
	if prev != nil && prev.Table != nil {
		status = prev.Table.Status
		timer = prev.Table.DirtyTimer
	}

	switch status {
	case StatusTerisi:
		if persons == 0 && itemCount > 0 {
			status = StatusKotor
			timer = 1
		} else if persons == 0 && itemCount == 0 {
			status = StatusBersih
			timer = 0
		}
	case StatusKotor:
		if itemCount == 0 {
			status = StatusBersih
			timer = 0
		} else {
			timer++
		}
	default: // BERSIH
		timer = 0
		if persons > 0 || itemCount > 0 {
			status = StatusTerisi
		}
	}

	return &TableState{
		Status:        status,
		PersonCount:   persons,
		ItemCount:     itemCount,
		Items:         items,
		DirtyTimer:    timer,
		NeedsCleaning: status == StatusKotor && timer >= e.cfg.DirtyTicks,
		Customers:     customers,
	}
}

// evalQueue derives the queue label from the person count. No timer.
func (e *Evaluator) evalQueue(dets []detect.Detection) *QueueState {
	persons := 0
	customers := CustomerCounts{}
	for _, d := range dets {
		if d.IsPerson() {
			countIdentity(&customers, d.Identity)
			// Staff never count toward queue length.
			if !isStaff(d.Identity) {
				persons++
			}
		}
	}

	label := QueueNormal
	switch {
	case persons == 0:
		label = QueueEmpty
	case persons > e.cfg.QueueLimit:
		label = QueueFull
	}

	return &QueueState{PersonCount: persons, Label: label, Customers: customers}
}

// evalStock counts current-tick stock detections per class. A hand inside
// the zone raises the short-lived being-taken condition without touching
// the counts.
func (e *Evaluator) evalStock(dets []detect.Detection) *StockState {
	counts := map[string]int{}
	total := 0
	beingTaken := false

	for _, d := range dets {
		switch {
		case d.IsHand():
			beingTaken = true
		case e.isStockClass(d.Class):
			counts[d.Class]++
			total++
		}
	}

	st := &StockState{Counts: counts, Total: total, BeingTaken: beingTaken}
	if total == 0 {
		st.Status = StatusHabis
	}
	return st
}

// evalDapur records staff presence and flags everyone else as an intruder.
func (e *Evaluator) evalDapur(dets []detect.Detection) *DapurState {
	st := &DapurState{}
	for _, d := range dets {
		if !d.IsPerson() {
			continue
		}
		if d.Identity != nil && d.Identity.Kind == "staff" {
			st.StaffNames = append(st.StaffNames, d.Identity.Name)
		} else {
			st.Intruders++
		}
	}
	sort.Strings(st.StaffNames)
	return st
}

func (e *Evaluator) isStockClass(class string) bool {
	if e.cfg.StockClasses[class] {
		return true
	}
	// Fallback proxies and unmapped stock model classes always count.
	return strings.HasPrefix(class, "wadah_") || strings.HasPrefix(class, "gorengan_")
}

func detectionsIn(zoneName string, dets []detect.Detection) []detect.Detection {
	var out []detect.Detection
	for _, d := range dets {
		if d.Zone == zoneName {
			out = append(out, d)
		}
	}
	return out
}

func isStaff(tag *detect.IdentityTag) bool {
	return tag != nil && tag.Kind == "staff"
}

func countIdentity(c *CustomerCounts, tag *detect.IdentityTag) {
	if tag == nil {
		return
	}
	switch tag.Kind {
	case "staff":
		c.Staff++
	case "regular":
		c.Regular++
	case "new":
		c.New++
	}
}
