// Package health polls the backend health and training endpoints for the
// dashboard.
package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sxlabs/sxconsole/internal/api"
)

// DefaultInterval is the dashboard refresh period.
const DefaultInterval = 5 * time.Second

// Client is the part of the API client used here.
type Client interface {
	Health(ctx context.Context) (*api.Health, error)
	TrainingStatus(ctx context.Context) (*api.TrainingStatus, error)
}

// Snapshot is one dashboard refresh. Training is optional: it needs admin
// privileges and may be disabled on the backend.
type Snapshot struct {
	Health      *api.Health
	Err         error
	Training    *api.TrainingStatus
	TrainingErr error
	FetchedAt   time.Time
}

// Fetch requests health and training status concurrently.
func Fetch(ctx context.Context, c Client) Snapshot {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := c.Health(gctx)
		snap.Health = h
		return err
	})
	g.Go(func() error {
		st, err := c.TrainingStatus(gctx)
		snap.Training = st
		snap.TrainingErr = err
		return nil
	})
	snap.Err = g.Wait()
	snap.FetchedAt = time.Now()
	return snap
}

// Poller fetches a Snapshot immediately and then on every tick.
type Poller struct {
	client   Client
	interval time.Duration
	onUpdate func(Snapshot)
}

// NewPoller creates a Poller delivering snapshots to onUpdate.
func NewPoller(c Client, interval time.Duration, onUpdate func(Snapshot)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{client: c, interval: interval, onUpdate: onUpdate}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.onUpdate(Fetch(ctx, p.client))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
