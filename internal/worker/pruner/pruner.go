// Package pruner removes blobs that no catalog row references.
//
// Such blobs appear when an upload saved its content but the catalog insert
// failed, or when a process died between the two steps. Blobs younger than
// the grace period are left alone so in-flight uploads are never collected.
// Rows whose blob is missing are reported, never repaired.
package pruner

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/tomb.v2"

	"docvault/internal/logging"
	"docvault/internal/storage"
)

const (
	defaultGracePeriod = time.Hour
	defaultMinInterval = time.Minute
	defaultMaxInterval = 30 * time.Minute
)

// PathLister lists the storage paths the catalog references.
type PathLister interface {
	ListStoragePaths(ctx context.Context) ([]string, error)
}

// Config encapsulates the configuration options for the pruner worker.
type Config struct {
	Store   storage.BlobStore
	Catalog PathLister
	Clock   clock.Clock
	Logger  logging.Logger

	// GracePeriod is the minimum age of an unreferenced blob before it is removed.
	GracePeriod time.Duration
	MinInterval time.Duration
	MaxInterval time.Duration

	// Registerer receives the pruner metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

// Validate ensures that the config values are valid.
func (c *Config) Validate() error {
	if c.Store == nil {
		return errors.NotValidf("missing Store")
	}
	if c.Catalog == nil {
		return errors.NotValidf("missing Catalog")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	if c.GracePeriod < 0 {
		return errors.NotValidf("negative GracePeriod")
	}
	if c.MinInterval > 0 && c.MaxInterval > 0 && c.MinInterval > c.MaxInterval {
		return errors.NotValidf("MinInterval greater than MaxInterval")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.GracePeriod == 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.MinInterval <= 0 {
		c.MinInterval = defaultMinInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaultMaxInterval
	}
	if c.MinInterval > c.MaxInterval {
		c.MaxInterval = c.MinInterval
	}
}

// Pruner is a worker that periodically deletes orphaned blobs.
type Pruner struct {
	tomb tomb.Tomb
	cfg  Config

	backoff func(time.Duration, int) time.Duration
	pruned  prometheus.Counter
}

// New validates cfg and starts the pruner loop.
func New(cfg Config) (*Pruner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	cfg.applyDefaults()

	p := &Pruner{
		cfg:     cfg,
		backoff: retry.ExpBackoff(cfg.MinInterval, cfg.MaxInterval, 1.5, false),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docvault_pruned_blobs_total",
			Help: "Number of unreferenced blobs removed by the pruner.",
		}),
	}
	if cfg.Registerer != nil {
		if err := cfg.Registerer.Register(p.pruned); err != nil {
			return nil, errors.Annotate(err, "registering pruner metrics")
		}
	}

	p.tomb.Go(p.loop)
	return p, nil
}

// Kill asks the worker to stop without waiting.
func (p *Pruner) Kill() {
	p.tomb.Kill(nil)
}

// Wait blocks until the worker has stopped.
func (p *Pruner) Wait() error {
	return p.tomb.Wait()
}

// Stop kills the worker and waits for it.
func (p *Pruner) Stop() error {
	p.Kill()
	return p.Wait()
}

func (p *Pruner) loop() error {
	timer := p.cfg.Clock.NewTimer(p.cfg.MinInterval)
	defer timer.Stop()

	ctx := p.tomb.Context(context.Background())

	var attempts int
	for {
		select {
		case <-p.tomb.Dying():
			return tomb.ErrDying

		case <-timer.Chan():
			pruned, err := p.prune(ctx)
			if err != nil {
				// Transient catalog or store failures back off like an idle pass.
				p.cfg.Logger.Error(ctx, "prune pass failed", "error", err.Error())
			}

			// Nothing pruned winds the backoff out, so an idle store is
			// scanned less and less often.
			if pruned <= 0 {
				attempts++
			} else {
				attempts = 0
			}

			timer.Reset(p.backoff(0, attempts))
		}
	}
}

func (p *Pruner) prune(ctx context.Context) (int, error) {
	// Blobs are listed before paths: a row created in between is then
	// always seen, so its blob is never a removal candidate.
	blobs, err := p.cfg.Store.List(ctx)
	if err != nil {
		return -1, errors.Annotate(err, "listing blobs")
	}

	paths, err := p.cfg.Catalog.ListStoragePaths(ctx)
	if err != nil {
		return -1, errors.Annotate(err, "listing catalog paths")
	}

	referenced := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		referenced[path] = struct{}{}
	}

	now := p.cfg.Clock.Now()
	present := make(map[string]struct{}, len(blobs))
	var remove []string
	for _, blob := range blobs {
		present[blob.Key] = struct{}{}
		if _, ok := referenced[blob.Key]; ok {
			continue
		}
		if now.Sub(blob.LastModified) < p.cfg.GracePeriod {
			continue
		}
		remove = append(remove, blob.Key)
	}

	var missing int
	for path := range referenced {
		if _, ok := present[path]; !ok {
			missing++
		}
	}
	if missing > 0 {
		p.cfg.Logger.Warn(ctx, "catalog rows reference missing blobs", "count", missing)
	}

	if len(remove) == 0 {
		return 0, nil
	}

	p.cfg.Logger.Info(ctx, "pruning unreferenced blobs", "count", len(remove))

	var pruned int
	for _, key := range remove {
		if err := p.cfg.Store.Delete(ctx, key); err != nil {
			// Try again next pass.
			p.cfg.Logger.Error(ctx, "failed to prune blob", "key", key, "error", err.Error())
			continue
		}
		pruned++
		p.pruned.Inc()
	}

	return pruned, nil
}
