package zone

// Table statuses, in the labels the dashboards display.
const (
	StatusBersih = "BERSIH" // clean
	StatusTerisi = "TERISI" // occupied
	StatusKotor  = "KOTOR"  // dirty
	StatusHabis  = "HABIS"  // stock empty
)

// Queue labels derived from person count.
const (
	QueueEmpty  = "empty"
	QueueNormal = "normal"
	QueueFull   = "full"
)

// CustomerCounts breaks people in a zone down by identity class.
type CustomerCounts struct {
	Staff   int `json:"staff"`
	Regular int `json:"regular"`
	New     int `json:"new"`
}

// Total counts customers, excluding staff.
func (c CustomerCounts) Total() int { return c.Regular + c.New }

// TableState is the per-tick state of a table zone.
type TableState struct {
	Status        string         `json:"status"`
	PersonCount   int            `json:"person_count"`
	ItemCount     int            `json:"item_count"`
	Items         map[string]int `json:"items"`
	DirtyTimer    int            `json:"dirty_timer"`
	NeedsCleaning bool           `json:"needs_cleaning"`
	Customers     CustomerCounts `json:"customers"`
}

// QueueState is the per-tick state of a kasir/queue zone.
type QueueState struct {
	PersonCount int            `json:"person_count"`
	Label       string         `json:"label"`
	Customers   CustomerCounts `json:"customers"`
}

// StockState is the per-tick state of a gorengan stock zone. Counts is
// keyed by item class; with the fallback detector the keys are container
// proxies instead.
type StockState struct {
	Status     string         `json:"status,omitempty"`
	Counts     map[string]int `json:"counts"`
	Total      int            `json:"total"`
	BeingTaken bool           `json:"being_taken"`
}

// DapurState tracks who is inside a staff-only kitchen zone.
type DapurState struct {
	StaffNames []string `json:"staff_names"`
	Intruders  int      `json:"intruders"`
}

// State is the evaluated state of one zone for one tick. Exactly one of
// the per-type fields is set, matching Type.
type State struct {
	Zone  string      `json:"zone"`
	Type  Type        `json:"zone_type"`
	Table *TableState `json:"table,omitempty"`
	Queue *QueueState `json:"queue,omitempty"`
	Stock *StockState `json:"stock,omitempty"`
	Dapur *DapurState `json:"dapur,omitempty"`
}

// Clone returns a deep copy, so published snapshots never alias the
// worker's next-tick input.
func (s *State) Clone() *State {
	out := *s
	if s.Table != nil {
		t := *s.Table
		t.Items = cloneCounts(s.Table.Items)
		out.Table = &t
	}
	if s.Queue != nil {
		q := *s.Queue
		out.Queue = &q
	}
	if s.Stock != nil {
		st := *s.Stock
		st.Counts = cloneCounts(s.Stock.Counts)
		out.Stock = &st
	}
	if s.Dapur != nil {
		d := *s.Dapur
		d.StaffNames = append([]string(nil), s.Dapur.StaffNames...)
		out.Dapur = &d
	}
	return &out
}

func cloneCounts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
