package main

import (
	"flag"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sotocloud/sotovision/internal/alert"
	"github.com/sotocloud/sotovision/internal/auth"
	"github.com/sotocloud/sotovision/internal/billing"
	"github.com/sotocloud/sotovision/internal/capture"
	"github.com/sotocloud/sotovision/internal/config"
	"github.com/sotocloud/sotovision/internal/detect"
	"github.com/sotocloud/sotovision/internal/identity"
	"github.com/sotocloud/sotovision/internal/server"
	"github.com/sotocloud/sotovision/internal/service"
	"github.com/sotocloud/sotovision/internal/store"
	"github.com/sotocloud/sotovision/internal/tray"
	"github.com/sotocloud/sotovision/internal/worker"
	"github.com/sotocloud/sotovision/internal/zone"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	withTray := flag.Bool("tray", false, "show the system tray toggle")
	autostart := flag.Bool("autostart", false, "enable camera analysis on startup")
	flag.Parse()

	fmt.Println("SotoVision - Restaurant Analytics")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	if err := seedAdmin(st); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	// Identity matching is optional; without an encoder sidecar every
	// person detection stays untagged.
	var gallery *identity.Gallery
	var identifier worker.Identifier
	if cfg.Identity.EncoderURL != "" {
		enc := identity.NewHTTPEncoder(cfg.Identity.EncoderURL, 10*time.Second)
		gallery = identity.NewGallery(cfg.Identity.StaffDir, enc)
		if err := gallery.Reload(); err != nil {
			log.Printf("staff gallery load: %v", err)
		}

		matcher := identity.NewMatcher(identity.MatcherConfig{
			StaffThreshold: float64(cfg.Identity.StaffThreshold),
			MatchThreshold: float64(cfg.Identity.MatchThreshold),
		}, gallery, st.Customers())

		if saved, err := st.Customers().List(); err != nil {
			log.Printf("customer log load: %v", err)
		} else {
			matcher.Seed(saved)
		}

		identifier = worker.NewPersonIdentifier(enc, matcher)
	}

	detector, err := detect.NewAdapter(detect.Config{
		GenericModel:      cfg.Detection.GenericModel,
		StockModel:        cfg.Detection.StockModel,
		GenericConfidence: cfg.Detection.GenericConfidence,
		StockConfidence:   cfg.Detection.StockConfidence,
		StockClasses:      cfg.Detection.StockClasses,
	})
	if err != nil {
		log.Fatalf("Failed to load detection models: %v", err)
	}
	defer detector.Close()

	evaluator := zone.NewEvaluator(zone.Config{
		DirtyTicks:   cfg.Pipeline.DirtyTicks,
		QueueLimit:   cfg.Pipeline.QueueLimit,
		StockClasses: stockClassSet(cfg.Detection.StockClasses),
	})
	emitter := billing.NewEmitter()
	alerts := alert.NewDetector(alert.Config{MinStock: cfg.Pipeline.MinStock})

	factory := func(cam *store.Camera, zones []zone.Zone) *worker.Pipeline {
		return &worker.Pipeline{
			CameraID:    cam.ID,
			Camera:      capture.NewCamera(cam.Source),
			Detector:    detector,
			Identifier:  identifier,
			Evaluator:   evaluator,
			Zones:       zones,
			Billing:     emitter,
			Alerts:      alerts,
			EncodeFrame: true,
		}
	}

	ctrl := service.NewController(st, factory, service.NewStoreSink(st), worker.Config{
		Tick:          cfg.Pipeline.TickPeriod,
		OpenRetries:   cfg.Pipeline.OpenRetries,
		MaxTickErrors: cfg.Pipeline.MaxTickErrors,
	})
	defer ctrl.Disable()

	authn := auth.NewAuthenticator(st.Users(), auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenExpiry))

	srv := server.New(server.Config{
		Store:      st,
		Auth:       authn,
		Controller: ctrl,
		Gallery:    gallery,
		StaffDir:   cfg.Identity.StaffDir,
		StaticDir:  cfg.Server.StaticDir,
	})

	if *autostart {
		if err := ctrl.Enable(); err != nil {
			log.Printf("autostart: %v", err)
		}
	}

	if *withTray {
		go serve(srv, cfg.Server.Addr)
		runTray(ctrl, cfg.Server.Addr)
		return
	}
	serve(srv, cfg.Server.Addr)
}

func serve(srv *server.Server, addr string) {
	fmt.Printf("Starting server on %s\n", addr)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// seedAdmin creates the initial admin account when the user table is empty,
// so a fresh install can log in to the dashboard.
func seedAdmin(st *store.Store) error {
	users, err := st.Users().List()
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	hash, err := auth.HashPassword("admin")
	if err != nil {
		return err
	}
	if err := st.Users().Create(&store.User{
		ID:           uuid.NewString(),
		Username:     "admin",
		PasswordHash: hash,
		Role:         store.RoleAdmin,
	}); err != nil {
		return err
	}

	log.Printf("created default admin user (username admin, password admin), change the password")
	return nil
}

// runTray blocks on the system tray loop and mirrors the controller state
// into the menu.
func runTray(ctrl *service.Controller, addr string) {
	t := tray.New()
	t.OnToggle(func(enabled bool) {
		if enabled {
			if err := ctrl.Enable(); err != nil {
				log.Printf("enable: %v", err)
			}
			return
		}
		ctrl.Disable()
	})
	t.OnDashboard(func() {
		if err := openBrowser(dashboardURL(addr)); err != nil {
			log.Printf("open dashboard: %v", err)
		}
	})
	t.OnQuit(func() {
		ctrl.Disable()
	})

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			t.SetWorkerCount(ctrl.Status().Active)
		}
	}()

	t.Run()
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func stockClassSet(classes map[int]string) map[string]bool {
	set := make(map[string]bool, len(classes))
	for _, name := range classes {
		set[name] = true
	}
	return set
}
