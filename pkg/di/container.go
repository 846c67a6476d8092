// Package di wires the configured components into one container
package di

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ssargent/respack/pkg/api"
	"github.com/ssargent/respack/pkg/catalog"
	"github.com/ssargent/respack/pkg/config"
	"github.com/ssargent/respack/pkg/export"
	"github.com/ssargent/respack/pkg/metrics"
	"github.com/ssargent/respack/pkg/store"
	"github.com/ssargent/respack/pkg/uid"
)

// Container holds all the dependencies for the application
type Container struct {
	config   *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	uids     uid.Registry
	store    *store.Store
	remapper *export.Remapper
}

// NewContainer builds every component from cfg. Logs go to logOutput.
func NewContainer(cfg *config.Config, logOutput io.Writer) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config:   cfg,
		logger:   cfg.Logging.NewLogger(logOutput),
		registry: prometheus.NewRegistry(),
	}
	c.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.metrics = metrics.New(c.registry)

	uids, err := c.openRegistry()
	if err != nil {
		return nil, err
	}
	c.uids = uids

	s, err := store.New(store.Config{
		FS:        store.NewOSFileSystem(cfg.ProjectRoot),
		UIDs:      uids,
		Classes:   catalog.NewRegistry(),
		CacheSize: cfg.Cache.Size,
		Logger:    c.logger,
		Metrics:   c.metrics,
	})
	if err != nil {
		uids.Close()
		return nil, err
	}
	c.store = s
	c.remapper = export.NewRemapper(s)

	return c, nil
}

func (c *Container) openRegistry() (uid.Registry, error) {
	switch c.config.Registry.Backend {
	case config.BackendMemory:
		return uid.NewMemoryRegistry(), nil
	case config.BackendPebble:
		dir := c.config.RegistryDir()
		if err := os.MkdirAll(filepath.Dir(dir), 0750); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
		r, err := uid.NewPebbleRegistry(dir)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("opened uid registry", "backend", config.BackendPebble, "dir", dir, "entries", r.Len())
		return r, nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", c.config.Registry.Backend)
	}
}

// Config returns the effective configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Metrics returns the metrics recorded by every component
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Store returns the persistence core
func (c *Container) Store() *store.Store {
	return c.store
}

// Remapper returns the export state machine
func (c *Container) Remapper() *export.Remapper {
	return c.remapper
}

// Server creates the inspection API over the container's store and metrics
func (c *Container) Server(apiKey string) *api.Server {
	return api.NewServer(c.store, api.ServerConfig{
		Bind:   c.config.Server.Bind,
		Port:   c.config.Server.Port,
		APIKey: apiKey,
	}, c.registry)
}

// Sink opens the configured export sink. prefix namespaces s3 object keys.
// The returned closer releases what the sink writes into and must be called
// after the sink is closed.
func (c *Container) Sink(prefix string) (export.Sink, io.Closer, error) {
	out := c.config.Export.Out

	switch c.config.Export.Sink {
	case config.SinkDir:
		return export.NewDirSink(out), nopCloser{}, nil
	case config.SinkArchive:
		if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
		file, err := os.Create(out)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create archive: %w", err)
		}
		sink, err := export.NewArchiveSink(file)
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		return sink, file, nil
	case config.SinkS3:
		s3 := c.config.S3
		sink, err := export.NewS3Sink(export.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			UseSSL:    s3.UseSSL,
			Prefix:    prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return sink, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown export sink %q", c.config.Export.Sink)
	}
}

// Close releases the registry
func (c *Container) Close() error {
	var errs []error
	if c.uids != nil {
		if err := c.uids.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close uid registry: %w", err))
		}
	}
	return errors.Join(errs...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
