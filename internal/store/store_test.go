package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sotocloud/sotovision/internal/alert"
	"github.com/sotocloud/sotovision/internal/billing"
	"github.com/sotocloud/sotovision/internal/identity"
	"github.com/sotocloud/sotovision/internal/zone"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBranchCRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Branches()

	b := &Branch{ID: "b-1", Name: "Soto Pusat", Address: "Jl. Merdeka 1"}
	if err := repo.Create(b); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID("b-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Soto Pusat" || got.Address != "Jl. Merdeka 1" {
		t.Errorf("wrong branch: %+v", got)
	}

	b.Address = "Jl. Merdeka 2"
	if err := repo.Update(b); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := repo.Delete("b-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID("b-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Users()

	u := &User{ID: "u-1", Username: "admin", PasswordHash: "x", Role: RoleAdmin}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByUsername("admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != RoleAdmin || got.BranchID != "" {
		t.Errorf("wrong user: %+v", got)
	}

	if _, err := repo.GetByUsername("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCameraRepository(t *testing.T) {
	s := newTestStore(t)
	if err := s.Branches().Create(&Branch{ID: "b-1", Name: "Pusat"}); err != nil {
		t.Fatal(err)
	}
	repo := s.Cameras()

	cams := []*Camera{
		{ID: "cam-1", Name: "Depan", Source: "0", BranchID: "b-1", Enabled: true},
		{ID: "cam-2", Name: "Kasir", Source: "rtsp://host/stream", BranchID: "b-1", Enabled: false},
	}
	for _, c := range cams {
		if err := repo.Create(c); err != nil {
			t.Fatalf("create %s: %v", c.ID, err)
		}
	}

	enabled, err := repo.ListEnabled()
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != "cam-1" {
		t.Errorf("wrong enabled cameras: %+v", enabled)
	}

	byBranch, err := repo.ListByBranch("b-1")
	if err != nil {
		t.Fatalf("list by branch: %v", err)
	}
	if len(byBranch) != 2 {
		t.Errorf("expected 2 cameras, got %d", len(byBranch))
	}
}

func TestZoneRepository(t *testing.T) {
	s := newTestStore(t)
	if err := s.Cameras().Create(&Camera{ID: "cam-1", Name: "Depan", Source: "0"}); err != nil {
		t.Fatal(err)
	}
	repo := s.Zones()

	z := &zone.Zone{
		ID: "z-1", CameraID: "cam-1", Name: "Meja 1",
		Type: zone.TypeTable, Coords: [4]float64{0.1, 0.1, 0.4, 0.4},
	}
	if err := repo.Create(z); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Malformed coordinates are rejected before touching the database.
	bad := &zone.Zone{ID: "z-2", CameraID: "cam-1", Name: "Bad", Type: zone.TypeTable,
		Coords: [4]float64{0.5, 0.5, 0.2, 0.2}}
	if err := repo.Create(bad); !errors.Is(err, zone.ErrMalformedZone) {
		t.Errorf("expected ErrMalformedZone, got %v", err)
	}

	zones, err := repo.ListByCamera("cam-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(zones) != 1 || zones[0].Name != "Meja 1" || zones[0].Type != zone.TypeTable {
		t.Errorf("wrong zones: %+v", zones)
	}

	// Deleting the camera cascades to its zones.
	if err := s.Cameras().Delete("cam-1"); err != nil {
		t.Fatal(err)
	}
	zones, err = repo.ListByCamera("cam-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 0 {
		t.Errorf("expected cascade delete, got %+v", zones)
	}
}

func TestBillingAccumulateWindow(t *testing.T) {
	s := newTestStore(t)
	repo := s.Billing()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := billing.Record{CameraID: "cam-1", Zone: "Gorengan 1", Item: "GORENGAN_BAKWAN", Qty: 5, Timestamp: t0}
	if err := repo.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Within the window the row is updated in place.
	rec.Qty, rec.Timestamp = 4, t0.Add(30*time.Second)
	if err := repo.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	recs, err := repo.ListRecent("cam-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Qty != 4 {
		t.Fatalf("expected single accumulated row with qty 4, got %+v", recs)
	}

	// Past the window a new row is written.
	rec.Qty, rec.Timestamp = 6, t0.Add(3*time.Minute)
	if err := repo.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	recs, err = repo.ListRecent("cam-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].Qty != 6 {
		t.Fatalf("expected second row with qty 6, got %+v", recs)
	}
}

func TestEventDedupeWindow(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := alert.Alert{CameraID: "cam-1", Zone: "Gorengan 1", Type: alert.TypeLowStock,
		Message: "stok menipis", Timestamp: t0}
	ok, err := repo.Append(a)
	if err != nil || !ok {
		t.Fatalf("first append: ok=%v err=%v", ok, err)
	}

	// Same alert inside the window is suppressed.
	a.Timestamp = t0.Add(20 * time.Second)
	ok, err = repo.Append(a)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected dedupe within window")
	}

	// A different type in the same zone is not suppressed.
	b := a
	b.Type = alert.TypeItemTaken
	if ok, err := repo.Append(b); err != nil || !ok {
		t.Errorf("different type suppressed: ok=%v err=%v", ok, err)
	}

	// The same alert past the window is written again.
	a.Timestamp = t0.Add(2 * time.Minute)
	if ok, err := repo.Append(a); err != nil || !ok {
		t.Errorf("expected write after window: ok=%v err=%v", ok, err)
	}

	alerts, err := repo.ListRecent("cam-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 3 {
		t.Errorf("expected 3 rows, got %d", len(alerts))
	}
}

func TestCustomerLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	repo := s.Customers()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c := identity.Customer{
		ID: "c-1", Embedding: []float32{0.5, -0.25, 1},
		VisitCount: 3, Sightings: 7, FirstSeen: t0, LastSeen: t0.Add(time.Hour),
	}
	if err := repo.SaveCustomer(c); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Upsert keeps a single row.
	c.VisitCount = 4
	if err := repo.SaveCustomer(c); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	customers, err := repo.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(customers))
	}
	got := customers[0]
	if got.VisitCount != 4 || got.Sightings != 7 {
		t.Errorf("wrong counts: %+v", got)
	}
	if len(got.Embedding) != 3 || got.Embedding[0] != 0.5 {
		t.Errorf("wrong embedding: %v", got.Embedding)
	}
}
