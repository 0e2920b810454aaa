package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mwantia/assetd"
	"github.com/mwantia/assetd/archive/s3"
	"github.com/mwantia/assetd/config"
	"github.com/mwantia/assetd/discovery"
	"github.com/mwantia/assetd/install"
	"github.com/mwantia/assetd/journal"
	"github.com/mwantia/assetd/journal/postgres"
	"github.com/mwantia/assetd/journal/sqlite"
	"github.com/mwantia/assetd/log"
	"github.com/mwantia/assetd/server"
)

func main() {
	configPath := flag.String("config", envOr("ASSETD_CONFIG", "assetd.json"),
		"Path to the JSON configuration file (can also be set via ASSETD_CONFIG)")
	listen := flag.String("listen", os.Getenv("ASSETD_LISTEN"),
		"Listen address override, e.g. 127.0.0.1:7675 (can also be set via ASSETD_LISTEN)")
	logLevel := flag.String("log-level", os.Getenv("ASSETD_LOG_LEVEL"),
		"Log level override: DEBUG, INFO, WARN, ERROR (can also be set via ASSETD_LOG_LEVEL)")
	flag.Parse()

	if err := run(*configPath, *listen, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "assetd: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func run(configPath, listenOverride, levelOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenOverride != "" {
		cfg.Listen = listenOverride
	}
	if levelOverride != "" {
		cfg.LogLevel = levelOverride
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []assetd.StoreOption{
		assetd.WithLogLevel(log.Parse(cfg.LogLevel)),
	}
	if cfg.LogFile != "" {
		opts = append(opts, assetd.WithLogFile(cfg.LogFile))
	}
	if cfg.TempPrefix != "" {
		opts = append(opts, assetd.WithTempPrefix(cfg.TempPrefix))
	}

	var journalBackend journal.Backend
	if cfg.Journal != nil {
		switch cfg.Journal.Backend {
		case "sqlite":
			journalBackend, err = sqlite.NewSQLiteBackend(cfg.Journal.DSN)
		case "postgres":
			journalBackend, err = postgres.NewPostgresBackend(cfg.Journal.DSN)
		}
		if err != nil {
			return fmt.Errorf("failed to create %s journal: %w", cfg.Journal.Backend, err)
		}

		if err := journalBackend.Open(ctx); err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journalBackend.Close(context.Background())

		opts = append(opts, assetd.WithJournal(journalBackend))
	}

	if cfg.Archive != nil {
		archiver, err := s3.NewS3Archiver(cfg.Archive.Endpoint, cfg.Archive.Bucket,
			cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.UseSSL)
		if err != nil {
			return fmt.Errorf("failed to create archiver: %w", err)
		}
		if err := archiver.Verify(ctx); err != nil {
			return fmt.Errorf("archive bucket unavailable: %w", err)
		}

		opts = append(opts, assetd.WithArchiver(archiver))
	}

	roots := make([]assetd.Root, 0, len(cfg.Roots))
	for _, root := range cfg.Roots {
		roots = append(roots, assetd.Root{
			Name:   root.Name,
			Base:   root.Path,
			Images: root.Images,
		})
	}

	store, err := assetd.New(roots, opts...)
	if err != nil {
		return err
	}
	logger := store.Logger()

	var installer *install.Installer
	if cfg.Install != nil && cfg.Install.Enabled {
		installer = install.NewInstaller(store, cfg.Install.AllowedDomains)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.NewServer(store, installer).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Consul != nil {
		registrar, err := consulRegistrar(cfg)
		if err != nil {
			return err
		}
		if err := registrar.Register(); err != nil {
			return fmt.Errorf("consul registration failed: %w", err)
		}
		defer func() {
			if err := registrar.Deregister(); err != nil {
				logger.Warn("Consul deregistration failed: %v", err)
			}
		}()

		logger.Info("Registered service with consul at %s", cfg.Consul.Address)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s (%d roots)", cfg.Listen, len(roots))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func consulRegistrar(cfg *config.Config) (*discovery.ConsulRegistrar, error) {
	host, portStr, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", cfg.Listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return discovery.NewConsulRegistrar(&discovery.ConsulConfig{
		Address:        cfg.Consul.Address,
		Token:          cfg.Consul.Token,
		Datacenter:     cfg.Consul.Datacenter,
		ServiceName:    cfg.Consul.ServiceName,
		ServiceID:      cfg.Consul.ServiceID,
		ServiceAddress: host,
		ServicePort:    port,
		CheckInterval:  cfg.Consul.CheckInterval,
	})
}
