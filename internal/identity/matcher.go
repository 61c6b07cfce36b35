package identity

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sotocloud/sotovision/internal/detect"
)

const (
	KindStaff   = "staff"
	KindRegular = "regular"
	KindNew     = "new"
)

// Customer is a remembered visitor. The embedding is a running mean of
// every sighting so the reference drifts with lighting and pose.
type Customer struct {
	ID         string
	Embedding  []float32
	VisitCount int
	Sightings  int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// CustomerLog receives customer updates for persistence. Implementations
// must tolerate being called on every sighting.
type CustomerLog interface {
	SaveCustomer(c Customer) error
}

type MatcherConfig struct {
	// StaffThreshold is the minimum cosine similarity to tag a person
	// as staff. Staff wins over customer matches.
	StaffThreshold float64
	// MatchThreshold is the minimum cosine similarity to re-identify a
	// returning customer.
	MatchThreshold float64
	// ResightWindow is how long a customer must be out of frame before
	// another sighting counts as a new visit.
	ResightWindow time.Duration
	// RegularVisits is the visit count at which a customer is promoted
	// to regular.
	RegularVisits int
	// Retention drops customers not seen for this long. Zero keeps
	// everyone for the life of the process.
	Retention time.Duration
}

// Matcher tags person detections as staff, regular or new customers.
// Staff references come from the gallery; customers accumulate in a
// rolling in-memory set, optionally mirrored to a CustomerLog.
type Matcher struct {
	cfg     MatcherConfig
	gallery *Gallery
	logSink CustomerLog

	mu        sync.Mutex
	customers map[string]*Customer
}

func NewMatcher(cfg MatcherConfig, gallery *Gallery, logSink CustomerLog) *Matcher {
	if cfg.StaffThreshold <= 0 {
		cfg.StaffThreshold = 0.45
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = 0.6
	}
	if cfg.ResightWindow <= 0 {
		cfg.ResightWindow = 10 * time.Second
	}
	if cfg.RegularVisits <= 0 {
		cfg.RegularVisits = 5
	}
	return &Matcher{
		cfg:       cfg,
		gallery:   gallery,
		logSink:   logSink,
		customers: make(map[string]*Customer),
	}
}

// Seed restores customers from persistence so visit counts survive a
// restart.
func (m *Matcher) Seed(customers []Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range customers {
		c := customers[i]
		m.customers[c.ID] = &c
	}
}

// Match tags an embedding. Staff references are checked first and win
// outright; otherwise the customer set is searched and extended.
func (m *Matcher) Match(emb []float32, now time.Time) *detect.IdentityTag {
	if name, sim := m.bestStaff(emb); sim >= m.cfg.StaffThreshold {
		return &detect.IdentityTag{Kind: KindStaff, Name: name}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(now)

	if c, sim := m.bestCustomer(emb); c != nil && sim >= m.cfg.MatchThreshold {
		if now.Sub(c.LastSeen) >= m.cfg.ResightWindow {
			c.VisitCount++
		}
		c.Embedding = meanUpdate(c.Embedding, emb, c.Sightings)
		c.Sightings++
		c.LastSeen = now
		m.persist(c)
		return m.tag(c)
	}

	c := &Customer{
		ID:         uuid.NewString(),
		Embedding:  append([]float32(nil), emb...),
		VisitCount: 1,
		Sightings:  1,
		FirstSeen:  now,
		LastSeen:   now,
	}
	m.customers[c.ID] = c
	m.persist(c)
	return m.tag(c)
}

// Customers returns a snapshot of the rolling set ordered by last
// sighting, newest first.
func (m *Matcher) Customers() []Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

func (m *Matcher) tag(c *Customer) *detect.IdentityTag {
	kind := KindNew
	if c.VisitCount >= m.cfg.RegularVisits {
		kind = KindRegular
	}
	return &detect.IdentityTag{Kind: kind, Name: c.ID, VisitCount: c.VisitCount}
}

func (m *Matcher) bestStaff(emb []float32) (string, float64) {
	var bestName string
	best := -1.0
	for _, e := range m.gallery.Entries() {
		if sim := Cosine(emb, e.Embedding); sim > best {
			best, bestName = sim, e.Name
		}
	}
	return bestName, best
}

func (m *Matcher) bestCustomer(emb []float32) (*Customer, float64) {
	var bestC *Customer
	best := -1.0
	for _, c := range m.customers {
		if sim := Cosine(emb, c.Embedding); sim > best {
			best, bestC = sim, c
		}
	}
	return bestC, best
}

func (m *Matcher) prune(now time.Time) {
	if m.cfg.Retention <= 0 {
		return
	}
	for id, c := range m.customers {
		if now.Sub(c.LastSeen) > m.cfg.Retention {
			delete(m.customers, id)
		}
	}
}

func (m *Matcher) persist(c *Customer) {
	if m.logSink == nil {
		return
	}
	// Matching keeps working from memory if the write fails; the next
	// sighting retries.
	_ = m.logSink.SaveCustomer(*c)
}

// Cosine returns the cosine similarity of two vectors, 0 when either is
// degenerate or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// meanUpdate folds a new sighting into the running mean embedding.
func meanUpdate(mean, sample []float32, n int) []float32 {
	if len(mean) != len(sample) || n <= 0 {
		return mean
	}
	out := make([]float32, len(mean))
	fn := float32(n)
	for i := range mean {
		out[i] = (mean[i]*fn + sample[i]) / (fn + 1)
	}
	return out
}
