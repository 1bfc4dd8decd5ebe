package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/lhctl/internal/basestation"
	"github.com/chaz8081/lhctl/internal/ble"
	"github.com/chaz8081/lhctl/internal/config"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/lhctl/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	setupLogging(cfg.LogLevel)
	printBanner(cfg)

	// Initialize BLE transport
	transport := ble.NewTinygoTransport()
	if err := transport.Enable(); err != nil {
		log.Fatalf("Failed to enable Bluetooth: %v\n\nEnsure Bluetooth is turned on and this terminal has Bluetooth access.", err)
	}

	obs := &cliObserver{scanDone: make(chan struct{}, 1)}
	engine := basestation.NewEngine(transport, obs, basestation.Options{
		NamePrefix:       cfg.NamePrefix,
		ScanWindow:       time.Duration(cfg.ScanWindowSec) * time.Second,
		PollInterval:     time.Duration(cfg.PollIntervalSec) * time.Second,
		PollTimeout:      time.Duration(cfg.PollTimeoutSec) * time.Second,
		IdentifyDuration: time.Duration(cfg.IdentifySec) * time.Second,
	})
	defer engine.Close()

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Read stdin commands in the background
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	engine.StartScan()

	// Station list as last shown to the user; indexes in commands refer
	// to this snapshot.
	var shown []basestation.Basestation

	for {
		select {
		case <-obs.scanDone:
			shown = engine.Basestations()
			printStations(shown)
			fmt.Println("Commands: scan | list | on <n|all> | off <n|all> | identify <n|all> | quit")

		case line, ok := <-lines:
			if !ok {
				log.Println("stdin closed, exiting")
				return
			}
			if line == "" {
				continue
			}
			if quit := handleCommand(engine, line, &shown); quit {
				return
			}

		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
			return
		}
	}
}

// handleCommand executes one REPL line. Returns true when the user quit.
func handleCommand(engine *basestation.Engine, line string, shown *[]basestation.Basestation) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "quit", "exit":
		return true

	case "scan":
		engine.StartScan()

	case "list":
		*shown = engine.Basestations()
		printStations(*shown)

	case "on", "off", "identify":
		if len(fields) != 2 {
			fmt.Printf("usage: %s <n|all>\n", cmd)
			return false
		}
		ids, err := resolveTargets(fields[1], *shown)
		if err != nil {
			fmt.Println(err)
			return false
		}
		engine.Apply(actionFor(cmd), ids)

	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return false
}

func actionFor(cmd string) basestation.Action {
	switch cmd {
	case "on":
		return basestation.ActionPowerOn
	case "off":
		return basestation.ActionPowerOff
	default:
		return basestation.ActionIdentify
	}
}

// resolveTargets maps "all" or a 1-based list index to station IDs.
func resolveTargets(arg string, shown []basestation.Basestation) ([]string, error) {
	if len(shown) == 0 {
		return nil, fmt.Errorf("no base stations; run 'scan' first")
	}
	if strings.EqualFold(arg, "all") {
		ids := make([]string, len(shown))
		for i, bs := range shown {
			ids[i] = bs.ID
		}
		return ids, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(shown) {
		return nil, fmt.Errorf("target must be 1..%d or 'all'", len(shown))
	}
	return []string{shown[n-1].ID}, nil
}

func printStations(list []basestation.Basestation) {
	if len(list) == 0 {
		fmt.Println("No base stations found.")
		return
	}
	for i, bs := range list {
		name := bs.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %d. %-16s %-12s %s\n", i+1, name, bs.State, bs.ID)
	}
}

// cliObserver prints engine notifications. ScanCompleted only signals the
// main loop: the observer runs on the engine context and must not call
// back into the engine itself.
type cliObserver struct {
	scanDone chan struct{}
}

func (o *cliObserver) PermissionsChanged() {
	slog.Warn("[UI] bluetooth availability changed")
}

func (o *cliObserver) ScanStarted() {
	slog.Info("[UI] scanning for base stations...")
}

func (o *cliObserver) ScanCompleted() {
	select {
	case o.scanDone <- struct{}{}:
	default:
	}
}

func (o *cliObserver) Discovered(id, name string) {
	slog.Info("[UI] discovered base station", "name", name, "id", id)
}

func (o *cliObserver) Connected(id string) {
	slog.Info("[UI] connected", "id", id)
}

func (o *cliObserver) StateChanged(id string, state basestation.State) {
	slog.Info("[UI] state changed", "id", id, "state", state.String())
}

func (o *cliObserver) SetStateFailed(id string) {
	slog.Warn("[UI] failed to set state", "id", id)
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== lhctl ===")
	fmt.Printf("  Prefix:    %s\n", cfg.NamePrefix)
	fmt.Printf("  Scan:      %ds window\n", cfg.ScanWindowSec)
	fmt.Printf("  Poll:      every %ds, timeout %ds\n", cfg.PollIntervalSec, cfg.PollTimeoutSec)
	fmt.Printf("  Identify:  %ds\n", cfg.IdentifySec)
	fmt.Printf("  Log:       %s\n", cfg.LogLevel)
	fmt.Println("=============")
}
