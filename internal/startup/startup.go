package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud-indexer/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	StateDir          string
	Port              string
	BatchSize         int
	BatchPause        time.Duration
	TickInterval      time.Duration
	MountPollInterval time.Duration
	RescanInterval    time.Duration
	SearchBackend     string
	VolumesFile       string
	OCREnabled        bool
	OCRLanguage       string
	TranslateTarget   string
	MetricsEnabled    bool
	LogHealthChecks   bool

	// Derived paths
	DatabasePath string
	IndexDir     string
	TempDir      string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	stateDir := getEnv("STATE_DIR", "/state")
	port := getEnv("PORT", "8080")
	batchSize := getEnvInt("BATCH_SIZE", 200)
	batchPause := getEnvDuration("BATCH_PAUSE", 500*time.Millisecond)
	tickInterval := getEnvDuration("TICK_INTERVAL", 30*time.Second)
	mountPollInterval := getEnvDuration("MOUNT_POLL_INTERVAL", 45*time.Second)
	rescanInterval := getEnvDuration("RESCAN_INTERVAL", 12*time.Hour)
	searchBackend := getEnv("SEARCH_BACKEND", "bleve")
	volumesFile := getEnv("VOLUMES_FILE", "")
	ocrEnabled := getEnvBool("OCR_ENABLED", false)
	ocrLanguage := getEnv("OCR_LANGUAGE", "eng")
	translateTarget := getEnv("TRANSLATE_TARGET", "")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)

	logging.Info("  STATE_DIR:            %s", stateDir)
	logging.Info("  PORT:                 %s", port)
	logging.Info("  BATCH_SIZE:           %d", batchSize)
	logging.Info("  BATCH_PAUSE:          %s", batchPause)
	logging.Info("  TICK_INTERVAL:        %s", tickInterval)
	logging.Info("  MOUNT_POLL_INTERVAL:  %s", mountPollInterval)
	logging.Info("  RESCAN_INTERVAL:      %s", rescanInterval)
	logging.Info("  SEARCH_BACKEND:       %s", searchBackend)
	logging.Info("  VOLUMES_FILE:         %s", orNone(volumesFile))
	logging.Info("  OCR_ENABLED:          %v", ocrEnabled)
	logging.Info("  OCR_LANGUAGE:         %s", ocrLanguage)
	logging.Info("  TRANSLATE_TARGET:     %s", orNone(translateTarget))
	logging.Info("  METRICS_ENABLED:      %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:    %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	if batchSize <= 0 {
		logging.Warn("  Invalid BATCH_SIZE, using default: 200")
		batchSize = 200
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	stateDir, err := filepath.Abs(stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory path: %w", err)
	}
	logging.Info("  State directory (absolute): %s", stateDir)

	config := &Config{
		StateDir:          stateDir,
		Port:              port,
		BatchSize:         batchSize,
		BatchPause:        batchPause,
		TickInterval:      tickInterval,
		MountPollInterval: mountPollInterval,
		RescanInterval:    rescanInterval,
		SearchBackend:     searchBackend,
		VolumesFile:       volumesFile,
		OCREnabled:        ocrEnabled,
		OCRLanguage:       ocrLanguage,
		TranslateTarget:   translateTarget,
		MetricsEnabled:    metricsEnabled,
		LogHealthChecks:   logHealthChecks,
		DatabasePath:      filepath.Join(stateDir, "indexer.db"),
		IndexDir:          filepath.Join(stateDir, "indexes"),
		TempDir:           filepath.Join(stateDir, "tmp"),
	}

	// State directory must exist and be writable; the progress store and the
	// search indexes live there.
	if err := ensureDirectory(stateDir, "state"); err != nil {
		return nil, fmt.Errorf("state directory error: %w", err)
	}
	logging.Debug("  Testing state directory write access...")
	if err := testWriteAccess(stateDir); err != nil {
		return nil, fmt.Errorf("state directory is not writable (required for progress store): %w", err)
	}
	logging.Info("  [OK] State directory is writable")

	if err := ensureDirectory(config.IndexDir, "index"); err != nil {
		return nil, fmt.Errorf("index directory error: %w", err)
	}
	if err := ensureDirectory(config.TempDir, "temp"); err != nil {
		return nil, fmt.Errorf("temp directory error: %w", err)
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Progress store: ENABLED (required)")
	logging.Info("    Search backend: %s", searchBackend)
	logging.Info("    OCR:            %s", enabledString(ocrEnabled))
	logging.Info("    Translation:    %s", enabledString(translateTarget != ""))
	logging.Info("    Metrics:        %s", enabledString(metricsEnabled))

	return config, nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// LogStoreInit logs progress store initialization
func LogStoreInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PROGRESS STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Progress store initialized in %v", duration)
}

// LogOCRInit logs OCR adapter initialization and checks for tesseract
func LogOCRInit(enabled bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OCR INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !enabled {
		logging.Info("  OCR disabled (set OCR_ENABLED=true to enable)")
		return
	}

	if err := checkTesseract(); err != nil {
		logging.Warn("  Tesseract check failed: %v", err)
		logging.Warn("  Image files will be skipped")
	} else {
		logging.Info("  [OK] Tesseract is available")
	}
}

// LogEngineInit logs indexing engine initialization
func LogEngineInit(batchSize int, tick time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENGINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Batch size:      %d", batchSize)
	logging.Info("  Tick interval:   %v", tick)
	logging.Info("  Starting engine...")
}

// LogEngineStarted logs successful engine start
func LogEngineStarted() {
	logging.Info("  [OK] Engine started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(port string, metricsEnabled bool, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", startupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Management:    http://0.0.0.0:%s/api/volumes", port)
	if metricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the daemon")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   ________                __   ____          __
  / ____/ /___  __  ______/ /  /  _/___  ____/ /__  _  _____  _____
 / /   / / __ \/ / / / __  /   / // __ \/ __  / _ \| |/_/ _ \/ ___/
/ /___/ / /_/ / /_/ / /_/ /  _/ // / / / /_/ /  __/>  </  __/ /
\____/_/\____/\__,_/\__,_/  /___/_/ /_/\__,_/\___/_/|_|\___/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Write access was confirmed, so not an error
	}
	return nil
}

func checkTesseract() error {
	path, err := exec.LookPath("tesseract")
	if err != nil {
		return fmt.Errorf("tesseract not found in PATH")
	}
	logging.Debug("  Tesseract path: %s", path)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
