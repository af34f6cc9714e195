package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/har/internal/capture"
	"github.com/banshee-data/har/internal/config"
	"github.com/banshee-data/har/internal/fsutil"
	"github.com/banshee-data/har/internal/joints"
	"github.com/banshee-data/har/internal/monitoring"
	"github.com/banshee-data/har/internal/overlay"
	"github.com/banshee-data/har/internal/sensor"
	"github.com/banshee-data/har/internal/serialmux"
	"github.com/banshee-data/har/internal/timeutil"
	"github.com/banshee-data/har/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to tuning JSON (default: built-in defaults)")
	cameraID    = flag.Int("camera", 0, "Camera device id")
	serialPort  = flag.String("serial", "", "Skeleton bridge serial port (overrides serial_port)")
	baudRate    = flag.Int("baud", 0, "Serial baud rate (overrides serial_baud_rate)")
	replayPath  = flag.String("replay", "", "Replay a JSONL recording instead of reading the bridge")
	recordPath  = flag.String("record", "", "Write annotated frames to this video file (MJPG)")
	recordFPS   = flag.Float64("fps", 0, "Frame rate of the recorded video (default: from frame_interval)")
	versionFlag = flag.Bool("version", false, "Print version and exit")
	debugFlag   = flag.Bool("debug", false, "Log every frame")
)

const escKey = 27

func main() {
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.String("har-camera"))
		return
	}
	monitoring.SetDebug(*debugFlag)

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	trackerCfg, err := joints.TrackerConfigFromTuning(cfg)
	if err != nil {
		log.Fatalf("invalid tracker config: %v", err)
	}
	proj := sensor.NewProjector(cfg.GetImageWidth(), cfg.GetImageHeight(), 0, 0)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, bridge, err := openSource(cfg, proj)
	if err != nil {
		log.Fatalf("failed to open source: %v", err)
	}
	if bridge != nil {
		defer bridge.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridge.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to monitor serial port: %v", err)
			}
		}()
		if err := bridge.Initialize(); err != nil {
			log.Fatalf("failed to initialize bridge: %v", err)
		}
	}

	renderer := overlay.NewRenderer(overlay.LayoutConfig{
		SourceWidth:         cfg.GetImageWidth(),
		SourceHeight:        cfg.GetImageHeight(),
		ConfidenceThreshold: trackerCfg.ConfidenceThreshold,
		SpeedUnit:           cfg.GetSpeedUnits(),
		PixelsPerInch:       cfg.GetPixelsPerInch(),
	})

	pipeline := capture.New(capture.Config{
		Registry:   joints.NewRegistry(trackerCfg, cfg.GetMaxUsers()),
		Projector:  proj,
		Publishers: []capture.Publisher{renderer},
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ctx, src); err != nil {
			log.Printf("frame loop stopped: %v", err)
		}
	}()

	fps := *recordFPS
	if fps <= 0 {
		fps = float64(time.Second) / float64(cfg.GetFrameInterval())
	}
	if err := runCamera(ctx, stop, renderer, fps); err != nil {
		log.Printf("camera: %v", err)
	}
	stop()
	wg.Wait()
	log.Printf("Graceful shutdown complete (%d skeleton frames)", pipeline.Frames())
}

// runCamera shows annotated webcam frames until ctx is done or the user
// presses q or Esc.
func runCamera(ctx context.Context, stop context.CancelFunc, renderer *overlay.Renderer, fps float64) error {
	webcam, err := gocv.OpenVideoCapture(*cameraID)
	if err != nil {
		return fmt.Errorf("opening camera %d: %w", *cameraID, err)
	}
	defer webcam.Close()

	window := gocv.NewWindow("har")
	defer window.Close()

	img := gocv.NewMat()
	defer img.Close()

	var writer *gocv.VideoWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	started := time.Now()
	for ctx.Err() == nil {
		if ok := webcam.Read(&img); !ok {
			return fmt.Errorf("camera %d closed", *cameraID)
		}
		if img.Empty() {
			continue
		}

		if *recordPath != "" && writer == nil {
			writer, err = gocv.VideoWriterFile(*recordPath, "MJPG", fps, img.Cols(), img.Rows(), true)
			if err != nil {
				return fmt.Errorf("creating video writer: %w", err)
			}
			log.Printf("recording to %s", *recordPath)
		}
		if writer != nil {
			renderer.SetStatus(fmt.Sprintf("REC %s", time.Since(started).Truncate(time.Second)))
		}

		renderer.Render(&img)
		if writer != nil {
			if err := writer.Write(img); err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}
		}

		window.IMShow(img)
		if key := window.WaitKey(1); key == escKey || key == 'q' {
			stop()
		}
	}
	return nil
}

func openSource(cfg *config.TuningConfig, proj sensor.Projector) (sensor.Source, serialmux.SerialMuxInterface, error) {
	if *replayPath != "" {
		src, err := sensor.OpenReplay(fsutil.OSFileSystem{}, *replayPath,
			sensor.WithProjector(proj), sensor.WithRealtime(timeutil.RealClock{}))
		if err != nil {
			return nil, nil, err
		}
		return src, nil, nil
	}

	port := *serialPort
	if port == "" {
		port = cfg.GetSerialPort()
	}
	if port == "" {
		return nil, nil, fmt.Errorf("either -replay or -serial (or serial_port in the config) is required")
	}
	baud := *baudRate
	if baud <= 0 {
		baud = cfg.GetSerialBaudRate()
	}
	bridge, err := serialmux.NewSerialMuxWith(nil, port, serialmux.PortOptions{BaudRate: baud})
	if err != nil {
		return nil, nil, err
	}
	return sensor.NewSerialSource(bridge, proj), bridge, nil
}
