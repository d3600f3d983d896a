//go:build windows
// +build windows

// Command padbridge is the router process: it bridges physical XInput and
// generic-HID gamepads onto virtual Xbox360/DS4 targets, translating and
// reshaping the input stream in between. Invoked with -hid-worker it
// instead runs the first-contact HID profiling helper (see internal/worker)
// and does none of the above.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"padbridge/internal/applog"
	"padbridge/internal/capture"
	"padbridge/internal/config"
	"padbridge/internal/dashboard"
	"padbridge/internal/hidhide"
	"padbridge/internal/manager"
	"padbridge/internal/orchestrator"
	"padbridge/internal/profilecache"
	"padbridge/internal/timing"
	"padbridge/internal/translate"
	"padbridge/internal/vbus"
	"padbridge/internal/worker"
)

func defaultDataDir() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = "."
	}
	return filepath.Join(appData, "padbridge")
}

func settingsFromConfig(cfg config.Config) dashboard.Settings {
	return dashboard.Settings{
		TranslationEnabled: cfg.TranslationEnabled,
		MaskingEnabled:     cfg.HidHideEnabled,
		XIToDI:             cfg.XInputToDInput,
		DIToXI:             cfg.DInputToXInput,
		SOCDEnabled:        cfg.SOCDEnabled,
		SOCDMethod:         translate.SOCDMethod(cfg.SOCDMethod),
		DebounceEnabled:    cfg.DebouncingEnabled,
		DebounceIntervalMs: cfg.DebounceIntervalMs,
		DeadzoneEnabled:    cfg.StickDeadzoneEnabled,
		LeftDZ:             float64(cfg.LeftStickDeadzone),
		RightDZ:            float64(cfg.RightStickDeadzone),
		LeftAntiDZ:         float64(cfg.LeftStickAntiDeadzone),
		RightAntiDZ:        float64(cfg.RightStickAntiDeadzone),
		RumbleEnabled:      cfg.RumbleEnabled,
		RumbleIntensity:    float64(cfg.RumbleIntensity),
	}
}

func main() {
	hidWorker := flag.Bool("hid-worker", false, "run the HID profiling helper and exit")
	configPath := flag.String("config", "", "path to the TOML settings file (default $APPDATA/padbridge/config.toml)")
	logPath := flag.String("log", "", "path to the log file (default $APPDATA/padbridge/router.log)")
	ioctlVariant := flag.String("hidhide-ioctl-variant", "v1", "HidHide IOCTL code variant (v1)")
	flag.Parse()

	if *hidWorker {
		worker.Main()
		return
	}

	dataDir := defaultDataDir()
	os.MkdirAll(dataDir, 0755)

	if *configPath == "" {
		*configPath = filepath.Join(dataDir, "config.toml")
	}
	if *logPath == "" {
		*logPath = filepath.Join(dataDir, "router.log")
	}

	logger := applog.New(*logPath, true)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed, using defaults: %v", err)
		cfg = config.Default()
	}

	if _, err := timing.New(); err != nil {
		// Fatal-init per spec.md §7: the platform's monotonic counter must
		// be available before the orchestrator's tick loop can run.
		logger.Error("timing init failed: %v", err)
		logger.Close()
		os.Exit(1)
	}

	codes := hidhide.IOCTLVariantV1
	if *ioctlVariant != "v1" {
		logger.LogOnce("hidhide-variant-unknown", "unknown hidhide-ioctl-variant %q, using v1", *ioctlVariant)
	}
	filter := hidhide.New(codes)
	if err := filter.Connect(); err != nil {
		// Non-fatal at feature granularity (spec.md §7): masking becomes a
		// no-op and the router proceeds in input-test mode for that feature.
		logger.LogOnce("hidhide-unavailable", "HidHide driver unavailable, masking disabled: %v", err)
	}

	capt := capture.New()
	cache := profilecache.Load(filepath.Join(dataDir, "conn_profile.json"))
	capt.SetProfileCache(cache)
	if err := capt.RefreshDevices(); err != nil {
		logger.LogOnce("capture-refresh-failed", "initial device refresh failed: %v", err)
	}

	board := dashboard.New(settingsFromConfig(cfg))

	emulator := vbus.New(func(linkedUser int, left, right float64) {
		capt.SetVibration(linkedUser, left, right)
	})
	emulator.SetRumbleSettings(cfg.RumbleEnabled, float64(cfg.RumbleIntensity))
	if err := emulator.Initialize(); err != nil {
		// Non-fatal per spec.md §7: without a bus connection every target
		// operation reports an error but capture and translation still run,
		// which is what "input test mode" means here.
		logger.LogOnce("vigem-unavailable", "virtual bus unavailable, running in input test mode: %v", err)
	}

	mgr := manager.New(filter, emulator)

	loop := orchestrator.New(capt, mgr, emulator, board, cfg.PollingFrequencyHz)
	loop.InstallConsoleControlHandler()

	logger.Log("padbridge started: config=%s log=%s polling=%dHz", *configPath, *logPath, cfg.PollingFrequencyHz)

	loop.Run(translate.DefaultDeviceProfiles())

	filter.Disconnect()
	if cfg.SaveLogsOnExit {
		logger.Log("shutting down")
	}
	if err := logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
