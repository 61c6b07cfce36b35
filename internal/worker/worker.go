// Package worker runs the per-camera analysis loop and fans results out
// to subscribers.
package worker

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sotocloud/sotovision/internal/alert"
	"github.com/sotocloud/sotovision/internal/billing"
	"github.com/sotocloud/sotovision/internal/zone"
)

// State of a worker's lifecycle.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

var (
	ErrAlreadyRunning = errors.New("worker already running")

	errStopRequested = errors.New("stop requested")
)

// Sink persists the billing records and alerts of each tick.
type Sink interface {
	SaveBilling(recs []billing.Record) error
	SaveAlerts(alerts []alert.Alert) error
}

// Config tunes the worker loop.
type Config struct {
	// Tick is the analysis interval.
	Tick time.Duration
	// OpenRetries is how many extra attempts are made to open the
	// camera before the worker gives up.
	OpenRetries int
	// RetryBackoff is the pause between open attempts.
	RetryBackoff time.Duration
	// MaxTickErrors stops the worker after this many consecutive
	// failed ticks.
	MaxTickErrors int
}

func (c *Config) fillDefaults() {
	if c.Tick <= 0 {
		c.Tick = 5 * time.Second
	}
	if c.OpenRetries < 0 {
		c.OpenRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.MaxTickErrors <= 0 {
		c.MaxTickErrors = 10
	}
}

// Worker drives one camera's pipeline on a fixed tick. Results go to
// the sink and the publisher; failures are counted and escalate to a
// stop when the camera appears gone.
type Worker struct {
	pipe *Pipeline
	sink Sink
	pub  *Publisher
	cfg  Config

	mu      sync.Mutex
	state   State
	lastErr error
	stop    chan struct{}
	done    chan struct{}
}

// Status is a point-in-time view of a worker.
type Status struct {
	CameraID string `json:"camera_id"`
	State    State  `json:"state"`
	LastErr  string `json:"last_error,omitempty"`
}

func New(pipe *Pipeline, sink Sink, pub *Publisher, cfg Config) *Worker {
	cfg.fillDefaults()
	return &Worker{
		pipe:  pipe,
		sink:  sink,
		pub:   pub,
		cfg:   cfg,
		state: StateStopped,
	}
}

// Publisher returns the worker's snapshot publisher.
func (w *Worker) Publisher() *Publisher { return w.pub }

// Start launches the worker loop. Starting a worker that is not
// stopped returns ErrAlreadyRunning.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateStopped {
		return ErrAlreadyRunning
	}

	w.state = StateStarting
	w.lastErr = nil
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.stop, w.done)
	return nil
}

// Stop signals the loop and waits for it to exit. Stopping a stopped
// worker is a no-op. The loop observes the signal within one tick.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return
	}
	stop, done := w.stop, w.done
	if w.state != StateStopping {
		w.state = StateStopping
		close(stop)
	}
	w.mu.Unlock()

	<-done
}

// Status returns the worker's current state.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{CameraID: w.pipe.CameraID, State: w.state}
	if w.lastErr != nil {
		st.LastErr = w.lastErr.Error()
	}
	return st
}

// Running reports whether the loop is starting or running.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StateStarting || w.state == StateRunning
}

func (w *Worker) run(stop, done chan struct{}) {
	defer close(done)

	if err := w.open(stop); err != nil {
		if !errors.Is(err, errStopRequested) {
			log.Printf("Worker %s failed to start: %v", w.pipe.CameraID, err)
			w.setError(err)
		}
		w.setState(StateStopped)
		return
	}

	w.setState(StateRunning)
	log.Printf("Worker %s running, tick %s", w.pipe.CameraID, w.cfg.Tick)

	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	var prev map[string]*zone.State
	failures := 0

	for {
		snap, err := w.pipe.Tick(prev, time.Now())
		if err != nil {
			failures++
			w.setError(err)
			log.Printf("Worker %s tick failed (%d/%d): %v",
				w.pipe.CameraID, failures, w.cfg.MaxTickErrors, err)
			if failures >= w.cfg.MaxTickErrors {
				w.shutdown(fmt.Errorf("giving up after %d failed ticks: %w", failures, err))
				return
			}
		} else {
			failures = 0
			prev = snap.States
			w.persist(snap)
			w.pub.Publish(snap)
		}

		select {
		case <-stop:
			w.shutdown(nil)
			return
		case <-ticker.C:
		}
	}
}

// open tries the camera with bounded retries, aborting early on stop.
// Open runs in its own goroutine so a stop is observed even while a
// connect (an RTSP timeout, say) is still blocking.
func (w *Worker) open(stop chan struct{}) error {
	var err error
	for attempt := 0; attempt <= w.cfg.OpenRetries; attempt++ {
		if attempt > 0 {
			log.Printf("Worker %s retrying camera open (%d/%d)",
				w.pipe.CameraID, attempt, w.cfg.OpenRetries)
			select {
			case <-stop:
				return errStopRequested
			case <-time.After(w.cfg.RetryBackoff):
			}
		}

		select {
		case <-stop:
			return errStopRequested
		default:
		}

		opened := make(chan error, 1)
		go func() { opened <- w.pipe.Camera.Open() }()

		select {
		case <-stop:
			// The open call keeps running; release the device if it
			// succeeds after we have already given up on it.
			go func() {
				if <-opened == nil {
					w.pipe.Camera.Close()
				}
			}()
			return errStopRequested
		case err = <-opened:
			if err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("open camera after %d attempts: %w", w.cfg.OpenRetries+1, err)
}

func (w *Worker) persist(snap *Snapshot) {
	if w.sink == nil {
		return
	}
	if err := w.sink.SaveBilling(snap.Billing); err != nil {
		log.Printf("Worker %s billing save failed: %v", w.pipe.CameraID, err)
	}
	if err := w.sink.SaveAlerts(snap.Alerts); err != nil {
		log.Printf("Worker %s alert save failed: %v", w.pipe.CameraID, err)
	}
}

func (w *Worker) shutdown(cause error) {
	if err := w.pipe.Camera.Close(); err != nil {
		log.Printf("Worker %s camera close failed: %v", w.pipe.CameraID, err)
	}
	if cause != nil {
		w.setError(cause)
	}
	w.setState(StateStopped)
	log.Printf("Worker %s stopped", w.pipe.CameraID)
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) setError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}
