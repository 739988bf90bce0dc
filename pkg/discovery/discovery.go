// Package discovery polls the metrics source so the server can register and
// unregister the metrics-backed tools as Prometheus comes and goes.
package discovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/isitobservable/k8s-observer-mcp/pkg/prom"
)

// Features captures which optional collaborators are currently reachable.
type Features struct {
	HasMetricsSource bool
}

type OnChangeFunc func(Features)

type Discovery struct {
	prom     *prom.Client
	features Features
	onChange OnChangeFunc
	interval time.Duration
	mu       sync.RWMutex
	polled   bool
	stopCh   chan struct{}
}

func New(promClient *prom.Client, onChange OnChangeFunc) *Discovery {
	return &Discovery{
		prom:     promClient,
		onChange: onChange,
		interval: 60 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

func (d *Discovery) GetFeatures() Features {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.features
}

// Start polls once synchronously so the first tool registration sees real
// availability, then keeps polling in the background.
func (d *Discovery) Start() {
	d.poll()
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.poll()
			case <-d.stopCh:
				return
			}
		}
	}()
}

// IsReady reports whether the initial availability poll has completed.
func (d *Discovery) IsReady() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.polled
}

func (d *Discovery) Stop() {
	close(d.stopCh)
}

func (d *Discovery) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	newFeatures := Features{}
	if d.prom != nil {
		newFeatures.HasMetricsSource = d.prom.Healthy(ctx)
	}

	d.mu.Lock()
	changed := newFeatures != d.features
	d.features = newFeatures
	d.polled = true
	d.mu.Unlock()

	if changed {
		slog.Info("discovery: metrics source availability changed",
			"reachable", newFeatures.HasMetricsSource)
		if d.onChange != nil {
			d.onChange(newFeatures)
		}
	}
}
