package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/har/internal/capture"
	"github.com/banshee-data/har/internal/config"
	"github.com/banshee-data/har/internal/csvlog"
	"github.com/banshee-data/har/internal/dashboard"
	"github.com/banshee-data/har/internal/db"
	"github.com/banshee-data/har/internal/fsutil"
	"github.com/banshee-data/har/internal/httputil"
	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/monitoring"
	"github.com/banshee-data/har/internal/plot"
	"github.com/banshee-data/har/internal/sensor"
	"github.com/banshee-data/har/internal/serialmux"
	"github.com/banshee-data/har/internal/sink"
	"github.com/banshee-data/har/internal/timeutil"
	"github.com/banshee-data/har/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to tuning JSON (default: built-in defaults)")
	serialPort    = flag.String("serial", "", "Skeleton bridge serial port (overrides serial_port)")
	baudRate      = flag.Int("baud", 0, "Serial baud rate (overrides serial_baud_rate)")
	replayPath    = flag.String("replay", "", "Replay a JSONL recording instead of reading the bridge")
	realtime      = flag.Bool("realtime", false, "Pace replayed frames by their timestamps")
	listen        = flag.String("listen", ":8080", "Dashboard listen address (empty disables)")
	dbPath        = flag.String("db", "har.db", "SQLite session database (empty disables)")
	migrationsDir = flag.String("migrations", "", "Load migrations from this directory instead of the embedded set")
	csvDir        = flag.String("csv-dir", "logs", "Directory for CSV logs (empty disables)")
	plotsDir      = flag.String("plots-dir", "plots", "Directory for PNG plots written on exit (empty disables)")
	listPorts     = flag.Bool("list-ports", false, "List serial ports and exit")
	versionFlag   = flag.Bool("version", false, "Print version and exit")
	debugFlag     = flag.Bool("debug", false, "Log every frame")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("har"))
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	monitoring.SetDebug(*debugFlag)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	trackerCfg, err := joints.TrackerConfigFromTuning(cfg)
	if err != nil {
		log.Fatalf("invalid tracker config: %v", err)
	}
	proj := sensor.NewProjector(cfg.GetImageWidth(), cfg.GetImageHeight(), 0, 0)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, sourceName, bridge, err := openSource(cfg, proj)
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	if bridge != nil {
		defer bridge.Close()

		// run the monitor routine to manage IO on the serial port
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridge.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()

		if err := bridge.Initialize(); err != nil {
			log.Fatalf("failed to initialize bridge: %v", err)
		}
		log.Printf("initialized bridge on %s", sourceName)
	}

	started := time.Now()
	var sinks []*sink.AsyncWriter

	var database *db.DB
	var sessionID string
	if *dbPath != "" {
		database, err = openDatabase(*dbPath, *migrationsDir)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		cfgJSON, _ := json.Marshal(cfg)
		session, err := database.StartSession(sourceName, string(cfgJSON), started)
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		sessionID = session.ID
		log.Printf("recording session %s to %s", sessionID, *dbPath)
		sinks = append(sinks, sink.NewAsyncWriter(sink.AsyncWriterConfig{
			Name:          "db",
			Writer:        db.NewRecorder(database, sessionID),
			FlushInterval: cfg.GetFlushInterval(),
		}))
	}

	if *csvDir != "" {
		logger, err := csvlog.NewLogger(csvlog.Config{
			Dir:                 *csvDir,
			Started:             started,
			ConfidenceThreshold: trackerCfg.ConfidenceThreshold,
			SpeedUnit:           cfg.GetSpeedUnits(),
			PixelsPerInch:       cfg.GetPixelsPerInch(),
		})
		if err != nil {
			log.Fatalf("failed to create CSV logger: %v", err)
		}
		sinks = append(sinks, sink.NewAsyncWriter(sink.AsyncWriterConfig{
			Name:          "csv",
			Writer:        logger,
			FlushInterval: cfg.GetFlushInterval(),
		}))
	}

	if *plotsDir != "" {
		sinks = append(sinks, sink.NewAsyncWriter(sink.AsyncWriterConfig{
			Name: "plot",
			Writer: plot.NewCollector(plot.Config{
				FS:            fsutil.OSFileSystem{},
				Dir:           *plotsDir,
				ImageWidth:    cfg.GetImageWidth(),
				ImageHeight:   cfg.GetImageHeight(),
				Thresholds:    trackerCfg.Thresholds,
				SpeedUnit:     cfg.GetSpeedUnits(),
				PixelsPerInch: cfg.GetPixelsPerInch(),
			}),
			Buffer:        1024,
			FlushInterval: cfg.GetFlushInterval(),
		}))
	}

	// Sinks outlive the frame loop so queued snapshots are drained on exit.
	var sinkWG sync.WaitGroup
	for _, aw := range sinks {
		sinkWG.Add(1)
		go func(aw *sink.AsyncWriter) {
			defer sinkWG.Done()
			if err := aw.Run(context.Background()); err != nil {
				log.Printf("sink close error: %v", err)
			}
		}(aw)
	}

	state := &dashboard.State{}
	if *listen != "" {
		dash := dashboard.NewServer(dashboard.Config{
			State:         state,
			Store:         storeOrNil(database),
			SessionID:     sessionID,
			ImageWidth:    cfg.GetImageWidth(),
			ImageHeight:   cfg.GetImageHeight(),
			Thresholds:    trackerCfg.Thresholds,
			SpeedUnit:     cfg.GetSpeedUnits(),
			PixelsPerInch: cfg.GetPixelsPerInch(),
			PlotsDir:      *plotsDir,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			mux := dash.ServeMux()

			// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
			if database != nil {
				if err := database.AttachAdminRoutes(mux); err != nil {
					log.Printf("failed to attach db admin routes: %v", err)
				}
			}
			if bridge != nil {
				bridge.AttachAdminRoutes(mux)
			} else {
				serialmux.NewDisabledSerialMux().AttachAdminRoutes(mux)
			}
			serveHTTP(ctx, *listen, httputil.LoggingMiddleware(mux))
		}()
	}

	pipeline := capture.New(capture.Config{
		Registry:   joints.NewRegistry(trackerCfg, cfg.GetMaxUsers()),
		Projector:  proj,
		Publishers: []capture.Publisher{state},
		Sinks:      sinks,
	})
	if err := pipeline.Run(ctx, src); err != nil {
		log.Printf("frame loop stopped: %v", err)
	}

	for _, aw := range sinks {
		aw.Stop()
	}
	sinkWG.Wait()

	if *listen != "" && ctx.Err() == nil {
		log.Printf("source finished; dashboard still serving on %s until interrupted", *listen)
		<-ctx.Done()
	}
	stop()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete (%d frames)", pipeline.Frames())
}

func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// openSource returns the frame source, a description for the session
// record and, for live capture, the serial bridge to monitor.
func openSource(cfg *config.TuningConfig, proj sensor.Projector) (sensor.Source, string, serialmux.SerialMuxInterface, error) {
	if *replayPath != "" {
		opts := []sensor.ReplayOption{sensor.WithProjector(proj)}
		if *realtime {
			opts = append(opts, sensor.WithRealtime(timeutil.RealClock{}))
		}
		src, err := sensor.OpenReplay(fsutil.OSFileSystem{}, *replayPath, opts...)
		if err != nil {
			return nil, "", nil, err
		}
		return src, "replay:" + *replayPath, nil, nil
	}

	port := *serialPort
	if port == "" {
		port = cfg.GetSerialPort()
	}
	if port == "" {
		return nil, "", nil, fmt.Errorf("either -replay or -serial (or serial_port in the config) is required")
	}
	baud := *baudRate
	if baud <= 0 {
		baud = cfg.GetSerialBaudRate()
	}
	bridge, err := serialmux.NewSerialMuxWith(nil, port, serialmux.PortOptions{BaudRate: baud})
	if err != nil {
		return nil, "", nil, err
	}
	return sensor.NewSerialSource(bridge, proj), "serial:" + port, bridge, nil
}

func openDatabase(path, migrations string) (*db.DB, error) {
	if migrations == "" {
		return db.NewDB(path)
	}
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(os.DirFS(migrations)); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// storeOrNil keeps a nil *db.DB from becoming a non-nil interface.
func storeOrNil(database *db.DB) dashboard.SampleStore {
	if database == nil {
		return nil
	}
	return database
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()
	log.Printf("dashboard listening on %s", addr)

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	path := fs.String("db", "har.db", "SQLite session database")
	fs.Usage = func() { db.PrintMigrateHelp(fs.Output()) }
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if err := db.RunMigrateCommand(os.Stdout, fs.Args(), *path); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}
