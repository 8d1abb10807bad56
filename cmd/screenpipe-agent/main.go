package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/screenpipe/agent/internal/capture"
	"github.com/screenpipe/agent/internal/config"
	"github.com/screenpipe/agent/internal/core"
	"github.com/screenpipe/agent/internal/dispatch"
	"github.com/screenpipe/agent/internal/health"
	"github.com/screenpipe/agent/internal/logging"
	"github.com/screenpipe/agent/internal/ocr"
	"github.com/screenpipe/agent/internal/pipeline"
	"github.com/screenpipe/agent/internal/selector"
	"github.com/screenpipe/agent/internal/stream"
	"github.com/screenpipe/agent/internal/textsink"
	"github.com/screenpipe/agent/internal/vision"
	"github.com/screenpipe/agent/internal/workerpool"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "screenpipe-agent",
	Short: "Continuous screen-capture OCR pipeline",
	Long:  `screenpipe-agent samples a monitor, elects novel frames, and streams per-window OCR results to connected viewers.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the capture pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capturable monitors",
	Run: func(cmd *cobra.Command, args []string) {
		listDevices()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("screenpipe-agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/screenpipe-agent/screenpipe-agent.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	logFileFallback := false

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
			logFileFallback = true
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")

	if logFileFallback {
		log.Warn("log file fallback active, logging to stdout only", "requestedFile", cfg.LogFile)
	}
}

func listDevices() {
	monitors, err := capture.ListMonitors()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list monitors: %v\n", err)
		os.Exit(1)
	}
	for _, m := range monitors {
		primary := ""
		if m.IsPrimary {
			primary = " (primary)"
		}
		fmt.Printf("%d: %s %dx%d%s\n", m.ID, m.Name, m.Width, m.Height, primary)
	}
}

func runAgent() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)
	log.Info("starting screenpipe-agent", "version", version, "monitorId", cfg.MonitorID, "ocrBackend", cfg.OCRBackend)

	hm := health.NewMonitor()

	backend, err := ocr.Resolve(ocr.Engine(cfg.OCRBackend), ocr.Config{
		UnstructuredAPIURL: cfg.UnstructuredAPIURL,
		UnstructuredAPIKey: cfg.UnstructuredAPIKey,
		TesseractPath:      cfg.TesseractPath,
		Language:           cfg.OCRLanguage,
	})
	if err != nil {
		log.Error("failed to resolve ocr backend", "backend", cfg.OCRBackend, "error", err)
		os.Exit(1)
	}

	var sink dispatch.TextSink
	if cfg.SaveTextFiles {
		s, err := textsink.New(cfg.TextSinkDir)
		if err != nil {
			log.Error("failed to initialize text sink", "dir", cfg.TextSinkDir, "error", err)
			os.Exit(1)
		}
		sink = s
	}

	pool := workerpool.New(cfg.DispatchWorkers, cfg.DispatchQueueSize)
	results := make(chan core.CaptureResult, cfg.DispatchQueueSize)
	disp := dispatch.New(pool, backend, cfg.SaveTextFiles, sink, results)

	hub := stream.NewHub(results)
	go hub.Run()

	httpServer := &http.Server{
		Addr:    cfg.StreamListenAddr,
		Handler: hub,
	}
	go func() {
		log.Info("stream listening", "addr", cfg.StreamListenAddr)
		hm.Update("stream", health.Healthy, "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("stream server failed", "error", err)
			hm.Update("stream", health.Unhealthy, err.Error())
		}
	}()

	loop := pipeline.New(
		pipeline.Config{
			MonitorID: cfg.MonitorID,
			Interval:  time.Duration(cfg.CaptureIntervalMS) * time.Millisecond,
		},
		capture.NewCapturer(),
		vision.NewScorer(),
		selector.New(),
		disp,
		hm,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("capture loop running")
	loop.Run(ctx)

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// The in-flight dispatch goroutine (if any) is allowed to finish and
	// still send its result to the hub; closing the channel here would
	// race that send, so the hub is stopped explicitly instead (spec §5:
	// cancelling the loop does not cancel an in-flight OCR task).
	pool.Shutdown(shutdownCtx)
	httpServer.Shutdown(shutdownCtx)
	hub.Stop()

	log.Info("screenpipe-agent stopped")
}
