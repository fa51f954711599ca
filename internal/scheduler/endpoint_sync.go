package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/charge/internal/keystone"
	"github.com/MrSnakeDoc/charge/internal/logger"
	"github.com/MrSnakeDoc/charge/internal/metrics"
)

// Reconciler is the part of keystone.Reconciler the syncer drives.
type Reconciler interface {
	Reconcile(ctx context.Context) (*keystone.Result, error)
}

// SyncStatus describes the last reconciliation attempt.
type SyncStatus struct {
	LastRun     time.Time
	LastSuccess time.Time
	LastError   string
	Created     []string
	Updated     []string
	Unchanged   int
	Runs        int
}

// EndpointSyncer keeps the service registration converged: once at start,
// then on every tick and on manual trigger.
type EndpointSyncer struct {
	reconciler    Reconciler
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	now           func() time.Time

	mu     sync.RWMutex
	status SyncStatus
}

// NewEndpointSyncer creates a new endpoint syncer. An interval of 0 disables
// the ticker; manual triggers still work.
func NewEndpointSyncer(
	reconciler Reconciler,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *EndpointSyncer {
	return &EndpointSyncer{
		reconciler:    reconciler,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		now:           time.Now,
	}
}

// Start runs a first reconciliation and then the periodic loop.
// A failing first run is logged, not returned: the next tick or trigger retries.
func (s *EndpointSyncer) Start(ctx context.Context) error {
	if err := s.Sync(ctx); err != nil {
		s.logger.Warn("initial endpoint reconciliation failed",
			logger.Error(err))
	}

	var (
		ticker *time.Ticker
		tick   <-chan time.Time // nil when periodic runs are disabled
	)
	if s.interval > 0 {
		ticker = time.NewTicker(s.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := s.Sync(ctx); err != nil {
					s.logger.Error("endpoint reconciliation failed",
						logger.Error(err))
				}
			case <-s.manualTrigger:
				s.logger.Info("manual reconciliation triggered")
				if err := s.Sync(ctx); err != nil {
					s.logger.Error("endpoint reconciliation failed",
						logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the syncer. Safe to call more than once.
func (s *EndpointSyncer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Sync runs one reconciliation and records its outcome.
func (s *EndpointSyncer) Sync(ctx context.Context) error {
	started := s.now()
	res, err := s.reconciler.Reconcile(ctx)

	var created, updated int
	if res != nil {
		created, updated = len(res.Created), len(res.Updated)
	}
	metrics.RecordReconcile(started, s.now().Sub(started), created, updated, err)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Runs++
	s.status.LastRun = started
	if err != nil {
		s.status.LastError = err.Error()
		return err
	}

	s.status.LastError = ""
	s.status.LastSuccess = started
	s.status.Created = res.Created
	s.status.Updated = res.Updated
	s.status.Unchanged = len(res.Unchanged)

	if res.Corrections() > 0 || res.ServiceCreated || res.ServiceRetyped {
		s.logger.Info("endpoint registration converged",
			logger.Bool("service_created", res.ServiceCreated),
			logger.Bool("service_retyped", res.ServiceRetyped),
			logger.Int("corrections", res.Corrections()),
			logger.Duration("took", s.now().Sub(started)))
	} else {
		s.logger.Debug("endpoint registration already converged")
	}

	return nil
}

// Status returns a copy of the last recorded outcome.
func (s *EndpointSyncer) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Created = append([]string(nil), s.status.Created...)
	st.Updated = append([]string(nil), s.status.Updated...)
	return st
}
