package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/sotocloud/sotovision/internal/alert"
	"github.com/sotocloud/sotovision/internal/billing"
	"github.com/sotocloud/sotovision/internal/capture"
	"github.com/sotocloud/sotovision/internal/detect"
	"github.com/sotocloud/sotovision/internal/store"
	"github.com/sotocloud/sotovision/internal/worker"
	"github.com/sotocloud/sotovision/internal/zone"
)

func testFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { m.Close() })
	return &m
}

// testFactory backs every camera with a looping mock feed and a mock
// detector seeing two bakwan in the stock zone.
func testFactory(t *testing.T) PipelineFactory {
	t.Helper()
	frame := testFrame(t)
	return func(cam *store.Camera, zones []zone.Zone) *worker.Pipeline {
		det := detect.NewMockDetector()
		det.SetDetections([]detect.Detection{
			detect.At("bakwan", 0.5, 0.5),
			detect.At("bakwan", 0.6, 0.5),
		})
		return &worker.Pipeline{
			CameraID:  cam.ID,
			Camera:    capture.NewMockCamera([]*gocv.Mat{frame}, true),
			Detector:  det,
			Evaluator: zone.NewEvaluator(zone.Config{StockClasses: map[string]bool{"bakwan": true}}),
			Zones:     zones,
			Billing:   billing.NewEmitter(),
			Alerts:    alert.NewDetector(alert.Config{MinStock: 3}),
		}
	}
}

func testController(t *testing.T) (*Controller, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	cams := []*store.Camera{
		{ID: "cam-1", Name: "Depan", Source: "0", Enabled: true},
		{ID: "cam-2", Name: "Gorengan", Source: "1", Enabled: true},
		{ID: "cam-3", Name: "Gudang", Source: "2", Enabled: false},
	}
	for _, cam := range cams {
		if err := s.Cameras().Create(cam); err != nil {
			t.Fatal(err)
		}
	}
	for _, camID := range []string{"cam-1", "cam-2"} {
		err := s.Zones().Create(&zone.Zone{
			ID: "z-" + camID, CameraID: camID, Name: "Gorengan 1",
			Type: zone.TypeStock, Coords: [4]float64{0, 0, 1, 1},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	c := NewController(s, testFactory(t), NewStoreSink(s), worker.Config{
		Tick: 10 * time.Millisecond,
	})
	t.Cleanup(c.Disable)
	return c, s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestController_EnableDisable(t *testing.T) {
	c, _ := testController(t)

	if st := c.Status(); st.Enabled || st.Active != 0 {
		t.Fatalf("initial status: %+v", st)
	}

	if err := c.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		st := c.Status()
		return st.Enabled && st.Active == 2
	})

	// Only the enabled cameras get workers.
	st := c.Status()
	if len(st.Workers) != 2 {
		t.Fatalf("expected 2 workers, got %+v", st.Workers)
	}
	for _, ws := range st.Workers {
		if ws.CameraID == "cam-3" {
			t.Error("disabled camera got a worker")
		}
	}

	c.Disable()
	st = c.Status()
	if st.Enabled || st.Active != 0 || len(st.Workers) != 0 {
		t.Fatalf("status after disable: %+v", st)
	}
}

func TestController_EnableIdempotent(t *testing.T) {
	c, _ := testController(t)

	if err := c.Enable(); err != nil {
		t.Fatal(err)
	}
	if err := c.Enable(); err != nil {
		t.Fatalf("second enable: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.Status().Active == 2 })
	if got := len(c.Status().Workers); got != 2 {
		t.Errorf("double enable duplicated workers: %d", got)
	}

	c.Disable()
	c.Disable()
	if st := c.Status(); st.Enabled {
		t.Errorf("status after double disable: %+v", st)
	}
}

// Enable on a running service picks up cameras registered since the last
// call and replaces workers that died on their own.
func TestController_EnableReconciles(t *testing.T) {
	c, s := testController(t)
	if err := c.Enable(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return c.Status().Active == 2 })

	c.mu.Lock()
	w := c.workers["cam-2"]
	c.mu.Unlock()
	w.Stop()
	if st := c.Status(); st.Active != 1 {
		t.Fatalf("expected 1 active worker after death, got %+v", st)
	}

	if err := s.Cameras().Create(&store.Camera{
		ID: "cam-4", Name: "Teras", Source: "3", Enabled: true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Zones().Create(&zone.Zone{
		ID: "z-cam-4", CameraID: "cam-4", Name: "Gorengan 1",
		Type: zone.TypeStock, Coords: [4]float64{0, 0, 1, 1},
	}); err != nil {
		t.Fatal(err)
	}

	if err := c.Enable(); err != nil {
		t.Fatalf("second enable: %v", err)
	}
	waitFor(t, time.Second, func() bool { return c.Status().Active == 3 })
	if got := len(c.Status().Workers); got != 3 {
		t.Errorf("expected 3 workers after reconcile, got %d", got)
	}
}

func TestController_PublisherLookup(t *testing.T) {
	c, _ := testController(t)
	if err := c.Enable(); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Publisher("cam-1"); !ok {
		t.Error("expected publisher for running camera")
	}
	if _, ok := c.Publisher("cam-3"); ok {
		t.Error("unexpected publisher for disabled camera")
	}

	c.Disable()
	if _, ok := c.Publisher("cam-1"); ok {
		t.Error("publisher survived disable")
	}
}

func TestController_StatusReflectsWorkerDeath(t *testing.T) {
	c, s := testController(t)
	if err := c.Enable(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return c.Status().Active == 2 })

	// Simulate cam-2's worker dying by stopping it directly through
	// the registry's own status plumbing.
	pub, ok := c.Publisher("cam-2")
	if !ok || pub == nil {
		t.Fatal("no publisher for cam-2")
	}
	c.mu.Lock()
	w := c.workers["cam-2"]
	c.mu.Unlock()
	w.Stop()

	st := c.Status()
	if !st.Enabled || st.Active != 1 {
		t.Errorf("expected 1 active worker after death, got %+v", st)
	}

	_ = s
}

func TestController_AnalyzeOnce(t *testing.T) {
	c, s := testController(t)

	snap, err := c.AnalyzeOnce("cam-1")
	if err != nil {
		t.Fatalf("analyze once: %v", err)
	}
	st, ok := snap.States["Gorengan 1"]
	if !ok || st.Stock.Total != 2 {
		t.Fatalf("wrong snapshot states: %+v", snap.States)
	}

	// One-shot results land in the billing log too.
	recs, err := s.Billing().ListRecent("cam-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) == 0 {
		t.Error("one-shot analysis not persisted")
	}

	if _, err := c.AnalyzeOnce("cam-404"); !errors.Is(err, ErrUnknownCamera) {
		t.Errorf("unknown camera: got %v", err)
	}
	if _, err := c.AnalyzeOnce("cam-3"); !errors.Is(err, ErrCameraDisabled) {
		t.Errorf("disabled camera: got %v", err)
	}
}

func TestController_AnalyzeAll(t *testing.T) {
	c, _ := testController(t)

	snaps, errs := c.AnalyzeAll()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected snapshots for 2 cameras, got %d", len(snaps))
	}
	for camID, snap := range snaps {
		if snap.CameraID != camID {
			t.Errorf("snapshot for %s carries id %s", camID, snap.CameraID)
		}
	}
}

func TestController_AnalyzeOnceWhileRunningUsesLatest(t *testing.T) {
	c, _ := testController(t)
	if err := c.Enable(); err != nil {
		t.Fatal(err)
	}
	pub, _ := c.Publisher("cam-1")
	waitFor(t, time.Second, func() bool { return pub.Latest() != nil })

	snap, err := c.AnalyzeOnce("cam-1")
	if err != nil {
		t.Fatalf("analyze while running: %v", err)
	}
	if snap != pub.Latest() {
		t.Error("expected the published snapshot, not a fresh device pass")
	}
}
