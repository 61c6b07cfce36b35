// Package service starts and stops the per-camera analysis workers.
package service

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/sotocloud/sotovision/internal/store"
	"github.com/sotocloud/sotovision/internal/worker"
	"github.com/sotocloud/sotovision/internal/zone"
)

var (
	ErrUnknownCamera  = errors.New("unknown camera")
	ErrCameraDisabled = errors.New("camera is disabled")
)

// PipelineFactory builds a pipeline for one camera. The controller
// calls it on every enable, so zone edits take effect on restart.
type PipelineFactory func(cam *store.Camera, zones []zone.Zone) *worker.Pipeline

// Status describes the service and its workers.
type Status struct {
	Enabled bool            `json:"enabled"`
	Active  int             `json:"active_workers"`
	Workers []worker.Status `json:"workers"`
}

// Controller owns the worker registry. Enable spins up one worker per
// enabled camera; Disable stops them all. Both are idempotent.
type Controller struct {
	cameras   *store.CameraRepository
	zones     *store.ZoneRepository
	factory   PipelineFactory
	sink      worker.Sink
	workerCfg worker.Config

	mu      sync.Mutex
	enabled bool
	workers map[string]*worker.Worker
}

func NewController(s *store.Store, factory PipelineFactory, sink worker.Sink, cfg worker.Config) *Controller {
	return &Controller{
		cameras:   s.Cameras(),
		zones:     s.Zones(),
		factory:   factory,
		sink:      sink,
		workerCfg: cfg,
		workers:   make(map[string]*worker.Worker),
	}
}

// Enable starts a worker for every enabled camera that does not already
// have one running. Calling Enable on a running service reconciles the
// registry: cameras registered since the last call get a worker, and
// workers that died on their own are replaced. Running cameras are left
// alone, so repeated calls are idempotent.
func (c *Controller) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cams, err := c.cameras.ListEnabled()
	if err != nil {
		return fmt.Errorf("list cameras: %w", err)
	}

	started := 0
	for _, cam := range cams {
		if w, ok := c.workers[cam.ID]; ok && w.Running() {
			continue
		}
		w, err := c.buildWorker(cam)
		if err != nil {
			log.Printf("Skipping camera %s: %v", cam.ID, err)
			continue
		}
		if err := w.Start(); err != nil {
			log.Printf("Skipping camera %s: %v", cam.ID, err)
			continue
		}
		c.workers[cam.ID] = w
		started++
	}

	c.enabled = true
	log.Printf("Service enabled with %d workers (%d newly started)", len(c.workers), started)
	return nil
}

// Disable stops every worker. Calling Disable on a stopped service is
// a no-op.
func (c *Controller) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}

	for id, w := range c.workers {
		w.Stop()
		delete(c.workers, id)
	}
	c.enabled = false
	log.Printf("Service disabled")
}

// Status reports the service flag and the live state of every worker.
// A worker that died on its own shows up as stopped here.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := lo.MapToSlice(c.workers, func(_ string, w *worker.Worker) worker.Status {
		return w.Status()
	})
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].CameraID < statuses[j].CameraID })

	return Status{
		Enabled: c.enabled,
		Active: lo.CountBy(statuses, func(s worker.Status) bool {
			return s.State == worker.StateRunning || s.State == worker.StateStarting
		}),
		Workers: statuses,
	}
}

// Publisher returns the snapshot publisher of a running worker.
func (c *Controller) Publisher(cameraID string) (*worker.Publisher, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workers[cameraID]
	if !ok {
		return nil, false
	}
	return w.Publisher(), true
}

// AnalyzeOnce runs a single analysis pass for one camera. If a worker
// is already running the latest snapshot is returned instead of
// touching the device.
func (c *Controller) AnalyzeOnce(cameraID string) (*worker.Snapshot, error) {
	c.mu.Lock()
	if w, ok := c.workers[cameraID]; ok && w.Running() {
		pub := w.Publisher()
		c.mu.Unlock()
		if snap := pub.Latest(); snap != nil {
			return snap, nil
		}
		return nil, fmt.Errorf("camera %s: no snapshot yet", cameraID)
	}
	c.mu.Unlock()

	cam, err := c.cameras.GetByID(cameraID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCamera, cameraID)
		}
		return nil, err
	}
	if !cam.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrCameraDisabled, cameraID)
	}

	pipe, err := c.buildPipeline(cam)
	if err != nil {
		return nil, err
	}
	if err := pipe.Camera.Open(); err != nil {
		return nil, fmt.Errorf("open camera %s: %w", cameraID, err)
	}
	defer pipe.Camera.Close()

	snap, err := pipe.Tick(nil, time.Now())
	if err != nil {
		return nil, err
	}
	if c.sink != nil {
		if err := c.sink.SaveBilling(snap.Billing); err != nil {
			log.Printf("One-shot billing save failed: %v", err)
		}
		if err := c.sink.SaveAlerts(snap.Alerts); err != nil {
			log.Printf("One-shot alert save failed: %v", err)
		}
	}
	return snap, nil
}

// AnalyzeAll runs a single analysis pass for every enabled camera,
// keyed by camera ID. Per-camera failures are reported inline rather
// than aborting the batch.
func (c *Controller) AnalyzeAll() (map[string]*worker.Snapshot, map[string]error) {
	cams, err := c.cameras.ListEnabled()
	if err != nil {
		return nil, map[string]error{"": err}
	}

	snaps := make(map[string]*worker.Snapshot)
	errs := make(map[string]error)
	for _, cam := range cams {
		snap, err := c.AnalyzeOnce(cam.ID)
		if err != nil {
			errs[cam.ID] = err
			continue
		}
		snaps[cam.ID] = snap
	}
	return snaps, errs
}

func (c *Controller) buildWorker(cam *store.Camera) (*worker.Worker, error) {
	pipe, err := c.buildPipeline(cam)
	if err != nil {
		return nil, err
	}
	return worker.New(pipe, c.sink, worker.NewPublisher(), c.workerCfg), nil
}

func (c *Controller) buildPipeline(cam *store.Camera) (*worker.Pipeline, error) {
	zones, err := c.zones.ListByCamera(cam.ID)
	if err != nil {
		return nil, fmt.Errorf("list zones for %s: %w", cam.ID, err)
	}
	return c.factory(cam, zones), nil
}
