package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/balance.report/internal/api"
	"github.com/banshee-data/balance.report/internal/artifact"
	"github.com/banshee-data/balance.report/internal/board"
	"github.com/banshee-data/balance.report/internal/config"
	"github.com/banshee-data/balance.report/internal/display"
	"github.com/banshee-data/balance.report/internal/engine"
	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/timeutil"
	"github.com/banshee-data/balance.report/internal/units"
)

var (
	//go:embed static/*
	staticFiles embed.FS
	devMode     = flag.Bool("dev", false, "Run in dev mode with a synthetic board")
	listen      = flag.String("listen", ":8080", "Listen address")
	serialPath  = flag.String("serial", "/dev/ttyUSB0", "Serial device of the board bridge")
	baudRate    = flag.Int("baud", 115200, "Serial baud rate")
	dbFile      = flag.String("db", "balance.db", "Path to the artifact database")
	configPath  = flag.String("config", config.DefaultConfigPath, "Path to the engine config JSON")
	migrations  = flag.String("migrations", "migrations", "Path to the schema migrations directory")
	rateFlag    = flag.Float64("rate", 0, "Override sample rate in Hz (0 uses config)")
	unitsFlag   = flag.String("units", "", "Override display units: "+units.GetValidUnitsString())
	verbose     = flag.Bool("verbose", false, "Enable verbose diagnostic logging")
)

// Main
func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := config.LoadEngineConfig(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		log.Printf("config %s not found, using built-in defaults", *configPath)
		cfg = config.EmptyEngineConfig()
	}

	rate := cfg.GetSampleRateHz()
	if *rateFlag > 0 {
		rate = *rateFlag
	}
	targetUnits := cfg.GetUnits()
	if *unitsFlag != "" {
		if !units.IsValid(*unitsFlag) {
			log.Fatalf("invalid units %q, valid values: %s", *unitsFlag, units.GetValidUnitsString())
		}
		targetUnits = *unitsFlag
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var b board.Board
	if *devMode {
		b = board.NewWobbleBoard(256)
	} else {
		sb, err := board.Open(*serialPath, *baudRate)
		if err != nil {
			log.Fatalf("failed to connect to board: %v", err)
		}
		b = sb

		// run the monitor routine to manage IO on the serial link
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sb.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("board monitor failed: %v", err)
				stop()
			}
			log.Print("monitor routine terminated")
		}()
	}
	defer b.Close()

	// gate acquisition on the power button so a session starts on an
	// explicit user action
	log.Print("waiting for the board power button...")
	if err := board.WaitReady(ctx, b, timeutil.RealClock{}, 100*time.Millisecond); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Fatalf("board never became ready: %v", err)
	}
	log.Print("board ready, starting acquisition")

	artifacts, err := artifact.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open artifact database: %v", err)
	}
	defer artifacts.Close()
	if err := artifacts.MigrateUp(*migrations); err != nil {
		log.Fatalf("failed to migrate artifact database: %v", err)
	}

	store := engine.NewStore(cfg.GetSessionCapacity(), cfg.GetTrialCapacity())

	var hub *display.Hub
	var sink engine.Sink
	if cfg.GetGUI() {
		hub = display.NewHub(cfg.GetDisplayHistory())
		defer hub.Close()
		sink = hub
	}

	loop, err := engine.NewLoop(b, store, sink, nil, rate, cfg.GetSuppressDuplicateWarnings())
	if err != nil {
		log.Fatalf("failed to create acquisition loop: %v", err)
	}

	// acquisition goroutine: a board fault ends the run
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil {
			log.Printf("acquisition loop faulted: %v", err)
			stop()
		}
		log.Printf("acquisition loop stopped (state %s)", loop.State())
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		if err := artifacts.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}
		if hub != nil {
			hub.AttachRoutes(mux)
		}

		apiMux := api.NewServer(loop, store, artifacts, hub, targetUnits).ServeMux()
		mux.Handle("/api/", apiMux)

		// read static files from the embedded filesystem in production or from
		// the local ./static in dev for easier iteration without restarting the
		// server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
