package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud-indexer/internal/adapters"
	"cloud-indexer/internal/database"
	"cloud-indexer/internal/engine"
	"cloud-indexer/internal/handlers"
	"cloud-indexer/internal/logging"
	"cloud-indexer/internal/middleware"
	"cloud-indexer/internal/mounts"
	"cloud-indexer/internal/pipeline"
	"cloud-indexer/internal/registry"
	"cloud-indexer/internal/search"
	"cloud-indexer/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Progress store
	storeStart := time.Now()
	store, err := database.Open(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to open progress store: %v", err)
	}
	defer store.Close()
	startup.LogStoreInit(time.Since(storeStart))

	// Search backend
	backend, err := search.New(config.SearchBackend, config.IndexDir)
	if err != nil {
		startup.LogFatal("Failed to initialize search backend: %v", err)
	}
	defer backend.Close()

	// Content adapters
	startup.LogOCRInit(config.OCREnabled)
	adapterReg, err := buildAdapterRegistry(config)
	if err != nil {
		startup.LogFatal("Failed to assemble content adapters: %v", err)
	}
	logging.Info("  Content adapters: %v", adapterReg.Names())

	var translator adapters.Translator
	if config.TranslateTarget != "" {
		translator = adapters.PassthroughTranslator{}
	}
	pipe := pipeline.New(backend, adapterReg, translator, config.TranslateTarget)

	// Volume registry and mount detector
	detector := mounts.NewDetector(config.MountPollInterval)
	reg := registry.New(store, detector)

	if config.VolumesFile != "" {
		bootstrapVolumes(reg, config.VolumesFile)
	}

	// Indexing engine
	startup.LogEngineInit(config.BatchSize, config.TickInterval)
	eng := engine.New(store, reg, pipe, backend, detector, engine.Config{
		BatchSize:      config.BatchSize,
		BatchPause:     config.BatchPause,
		TickInterval:   config.TickInterval,
		RescanInterval: config.RescanInterval,
	})
	eng.Start()
	startup.LogEngineStarted()

	// Management API
	h := handlers.New(reg, eng)
	router := setupRouter(h, config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, eng)

	startup.LogServerStarted(config.Port, config.MetricsEnabled, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// buildAdapterRegistry assembles the fixed adapter set selected by config.
func buildAdapterRegistry(config *startup.Config) (*adapters.Registry, error) {
	list := []adapters.ContentAdapter{
		adapters.NewTextAdapter(0),
		adapters.NewPDFAdapter(),
	}

	if config.OCREnabled {
		ocr, err := adapters.NewOCRAdapter(config.OCRLanguage, config.TempDir)
		if err != nil {
			logging.Warn("OCR adapter unavailable, image files will be skipped: %v", err)
		} else {
			list = append(list, ocr)
		}
	}

	return adapters.NewRegistry(list...)
}

// bootstrapVolumes registers volumes declared in the YAML file, skipping
// names that already exist so restarts are idempotent.
func bootstrapVolumes(reg *registry.Registry, path string) {
	vols, err := startup.LoadVolumesFile(path)
	if err != nil {
		startup.LogFatal("Volumes file error: %v", err)
	}

	ctx := context.Background()
	for _, v := range vols {
		_, err := reg.Add(ctx, database.Volume{
			Name:            v.Name,
			MountPath:       v.MountPath,
			IndexName:       v.IndexName,
			IncludePatterns: v.IncludePatterns,
			ExcludePatterns: v.ExcludePatterns,
		})
		switch {
		case err == nil:
			logging.Info("  Bootstrapped volume %s (%s)", v.Name, v.MountPath)
		case errors.Is(err, database.ErrVolumeExists):
			logging.Debug("  Volume %s already registered", v.Name)
		default:
			startup.LogFatal("Volumes file entry %q invalid: %v", v.Name, err)
		}
	}
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/volumes", h.ListVolumes).Methods("GET")
	api.HandleFunc("/volumes", h.AddVolume).Methods("POST")
	api.HandleFunc("/volumes/{name}", h.GetVolume).Methods("GET")
	api.HandleFunc("/volumes/{name}", h.DeleteVolume).Methods("DELETE")
	api.HandleFunc("/volumes/{name}/enable", h.EnableVolume).Methods("POST")
	api.HandleFunc("/volumes/{name}/disable", h.DisableVolume).Methods("POST")
	api.HandleFunc("/volumes/{name}/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/volumes/{name}/reset", h.ResetVolume).Methods("POST")

	return r
}

func handleShutdown(srv *http.Server, eng *engine.Engine) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping indexing engine")
	eng.Stop()
	startup.LogShutdownStepComplete("Engine stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
