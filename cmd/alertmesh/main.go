package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alertmesh/config"
	"alertmesh/internal/agent"
	"alertmesh/internal/alertwindow"
	"alertmesh/internal/broker"
	"alertmesh/internal/connmgr"
	"alertmesh/internal/dashboard"
	"alertmesh/internal/gateway"
	"alertmesh/internal/history"
	"alertmesh/internal/logger"
	"alertmesh/internal/reconcile"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("alertmesh.yml"); err == nil {
		return "alertmesh.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "alertmesh.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "alertmesh.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.AlertMesh.Broker.Redis.Addr == "" {
		cfg.AlertMesh.Broker.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.AlertMesh.Broker.Cluster == "" {
		// Pinned on both sides; a mismatch means silent delivery loss.
		cfg.AlertMesh.Broker.Cluster = "ap2"
	}
	if cfg.AlertMesh.Broker.PublishTimeout <= 0 {
		cfg.AlertMesh.Broker.PublishTimeout = 5 * time.Second
	}

	if cfg.AlertMesh.Gateway.ListenAddr == "" {
		cfg.AlertMesh.Gateway.ListenAddr = ":8080"
	}

	if cfg.AlertMesh.Alert.Window <= 0 {
		cfg.AlertMesh.Alert.Window = alertwindow.DefaultWindow
	}
	if cfg.AlertMesh.Alert.FallbackEntropy <= 0 {
		cfg.AlertMesh.Alert.FallbackEntropy = reconcile.FallbackEntropy
	}

	if cfg.AlertMesh.History.Timeout <= 0 {
		cfg.AlertMesh.History.Timeout = 5 * time.Second
	}

	if cfg.AlertMesh.Watch.FeedInterval <= 0 {
		cfg.AlertMesh.Watch.FeedInterval = 900 * time.Millisecond
	}
	if cfg.AlertMesh.Watch.PlotWidth <= 0 {
		cfg.AlertMesh.Watch.PlotWidth = 100
	}
	if cfg.AlertMesh.Watch.PlotHeight <= 0 {
		cfg.AlertMesh.Watch.PlotHeight = 100
	}

	if cfg.AlertMesh.Agent.WatchDir == "" {
		cfg.AlertMesh.Agent.WatchDir = "./vault"
	}
	if cfg.AlertMesh.Agent.GatewayURL == "" {
		cfg.AlertMesh.Agent.GatewayURL = "http://127.0.0.1:8080/api/incident"
	}
	if cfg.AlertMesh.Agent.EntropyThreshold <= 0 {
		cfg.AlertMesh.Agent.EntropyThreshold = 7.5
	}
	if cfg.AlertMesh.Agent.HexDumpBytes <= 0 {
		cfg.AlertMesh.Agent.HexDumpBytes = 64
	}
	if cfg.AlertMesh.Agent.UplinkTimeout <= 0 {
		cfg.AlertMesh.Agent.UplinkTimeout = 5 * time.Second
	}

	if cfg.AlertMesh.Logging.Level == "" {
		cfg.AlertMesh.Logging.Level = "info"
	}
}

func loadConfig(args []string) *config.Config {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(
		cfg.AlertMesh.Logging.Enabled,
		cfg.AlertMesh.Logging.Level,
		cfg.AlertMesh.Logging.File,
		cfg.AlertMesh.Logging.Console,
		cfg.AlertMesh.Logging.MaxSizeMB,
		cfg.AlertMesh.Logging.MaxBackups,
	); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("Config loaded from: %s", configPath)
	return cfg
}

func brokerConfig(cfg *config.Config) broker.Config {
	return broker.Config{
		Addr:           cfg.AlertMesh.Broker.Redis.Addr,
		Password:       cfg.AlertMesh.Broker.Redis.Password,
		DB:             cfg.AlertMesh.Broker.Redis.DB,
		Cluster:        cfg.AlertMesh.Broker.Cluster,
		PublishTimeout: cfg.AlertMesh.Broker.PublishTimeout,
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

func runGateway(args []string) {
	cfg := loadConfig(args)
	logger.Infof("Gateway starting on %s", cfg.AlertMesh.Gateway.ListenAddr)

	pub, err := broker.NewPublisher(brokerConfig(cfg))
	if err != nil {
		logger.Errorf("Failed to create publisher: %v", err)
		log.Fatalf("Failed to create publisher: %v", err)
	}

	srv, err := gateway.NewServer(gateway.Config{
		ListenAddr:  cfg.AlertMesh.Gateway.ListenAddr,
		AgentSecret: cfg.AlertMesh.Gateway.AgentSecret,
		Metrics:     cfg.AlertMesh.Gateway.Metrics,
	}, pub)
	if err != nil {
		logger.Errorf("Failed to create gateway server: %v", err)
		log.Fatalf("Failed to create gateway server: %v", err)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Errorf("Gateway server stopped: %v", err)
		}
	}()

	waitForSignal()

	logger.Infof("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Error shutting down gateway: %v", err)
	}
	if err := pub.Close(); err != nil {
		logger.Errorf("Error closing publisher: %v", err)
	}
	logger.Infof("Gateway stopped")
}

func runWatch(args []string) {
	cfg := loadConfig(args)
	logger.Infof("Watch session starting")

	conns := connmgr.New(brokerConfig(cfg))
	machine := alertwindow.New(cfg.AlertMesh.Alert.Window, alertwindow.TerminalBell{}, nil)

	var hist *history.Client
	if cfg.AlertMesh.History.URL != "" {
		h, err := history.NewClient(history.Config{
			URL:     cfg.AlertMesh.History.URL,
			Timeout: cfg.AlertMesh.History.Timeout,
		})
		if err != nil {
			logger.Errorf("Failed to create history client: %v", err)
			log.Fatalf("Failed to create history client: %v", err)
		}
		hist = h
	}

	session := dashboard.NewSession(dashboard.Config{
		FeedInterval:    cfg.AlertMesh.Watch.FeedInterval,
		PlotWidth:       cfg.AlertMesh.Watch.PlotWidth,
		PlotHeight:      cfg.AlertMesh.Watch.PlotHeight,
		FallbackEntropy: cfg.AlertMesh.Alert.FallbackEntropy,
	}, conns, machine, hist)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audio stays gated until the operator interacts once.
	go func() {
		fmt.Println("Press Enter to engage audio and load history...")
		if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
			return
		}
		session.Engage(ctx)
		logger.Infof("Operator engaged; audio enabled for the session")
	}()

	go func() {
		if err := session.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Session error: %v", err)
		}
	}()

	waitForSignal()

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(100 * time.Millisecond)
	machine.Close()
	if err := conns.Close(); err != nil {
		logger.Errorf("Error closing broker connection: %v", err)
	}
	logger.Infof("Watch session stopped")
}

func runAgent(args []string) {
	cfg := loadConfig(args)

	uplink, err := agent.NewUplink(agent.UplinkConfig{
		URL:     cfg.AlertMesh.Agent.GatewayURL,
		Secret:  cfg.AlertMesh.Agent.Secret,
		Timeout: cfg.AlertMesh.Agent.UplinkTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create uplink: %v", err)
		log.Fatalf("Failed to create uplink: %v", err)
	}

	watcher, err := agent.NewWatcher(agent.Config{
		WatchDir:         cfg.AlertMesh.Agent.WatchDir,
		EntropyThreshold: cfg.AlertMesh.Agent.EntropyThreshold,
		AuthorizedPrefix: cfg.AlertMesh.Agent.AuthorizedPrefix,
		HexDumpBytes:     cfg.AlertMesh.Agent.HexDumpBytes,
		MachineID:        cfg.AlertMesh.Agent.MachineID,
	}, uplink)
	if err != nil {
		logger.Errorf("Failed to create watcher: %v", err)
		log.Fatalf("Failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := watcher.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Watcher error: %v", err)
		}
	}()

	waitForSignal()

	logger.Infof("Shutting down")
	cancel()
	if err := watcher.Close(); err != nil {
		logger.Errorf("Error closing watcher: %v", err)
	}
	logger.Infof("Agent stopped")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <gateway|watch|agent> [config.yml]\n", filepath.Base(os.Args[0]))
	os.Exit(2)
}

func main() {
	// Optional .env next to the binary; secrets override the YAML.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
	}
	switch strings.ToLower(os.Args[1]) {
	case "gateway":
		runGateway(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "agent":
		runAgent(os.Args[2:])
	default:
		usage()
	}
}
