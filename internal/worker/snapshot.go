package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sotocloud/sotovision/internal/alert"
	"github.com/sotocloud/sotovision/internal/billing"
	"github.com/sotocloud/sotovision/internal/detect"
	"github.com/sotocloud/sotovision/internal/zone"
)

// Snapshot is the full result of one analysis tick. JPEG holds the
// annotated source frame for streaming and is omitted from JSON.
type Snapshot struct {
	CameraID   string                 `json:"camera_id"`
	TakenAt    time.Time              `json:"taken_at"`
	JPEG       []byte                 `json:"-"`
	Detections []detect.Detection     `json:"detections"`
	States     map[string]*zone.State `json:"states"`
	Billing    []billing.Record       `json:"billing"`
	Alerts     []alert.Alert          `json:"alerts"`
}

// Publisher fans snapshots out to subscribers. Slow subscribers drop
// snapshots instead of stalling the producer; the latest snapshot is
// always available for request/response consumers.
type Publisher struct {
	latest atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[chan *Snapshot]struct{}
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[chan *Snapshot]struct{})}
}

// Publish stores the snapshot as latest and offers it to every
// subscriber without blocking.
func (p *Publisher) Publish(s *Snapshot) {
	p.latest.Store(s)

	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- s:
		default:
			// Subscriber is behind; it picks up the next snapshot.
		}
	}
}

// Latest returns the most recent snapshot, or nil before the first tick.
func (p *Publisher) Latest() *Snapshot {
	return p.latest.Load()
}

// Subscribe registers a snapshot channel. The returned cancel function
// must be called exactly once; after it returns the channel is closed.
func (p *Publisher) Subscribe(buffer int) (<-chan *Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *Snapshot, buffer)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers returns the current subscriber count.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}
