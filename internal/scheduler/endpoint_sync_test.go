package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/charge/internal/keystone"
	"github.com/MrSnakeDoc/charge/internal/logger"
)

type countingReconciler struct {
	mu   sync.Mutex
	n    int
	errs []error // returned in order, then nil
	seen chan struct{}
}

func newCountingReconciler(errs ...error) *countingReconciler {
	return &countingReconciler{errs: errs, seen: make(chan struct{}, 16)}
}

func (c *countingReconciler) Reconcile(context.Context) (*keystone.Result, error) {
	c.mu.Lock()
	c.n++
	var err error
	if len(c.errs) > 0 {
		err, c.errs = c.errs[0], c.errs[1:]
	}
	c.mu.Unlock()
	c.seen <- struct{}{}

	if err != nil {
		return nil, err
	}
	return &keystone.Result{Created: []string{"RegionOne"}, Unchanged: []string{"RegionTwo"}}, nil
}

func (c *countingReconciler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func waitCall(t *testing.T, c *countingReconciler) {
	t.Helper()
	select {
	case <-c.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reconciliation")
	}
}

func TestEndpointSyncer_Sync(t *testing.T) {
	boom := errors.New("keystone down")
	rec := newCountingReconciler(boom)
	s := NewEndpointSyncer(rec, logger.Nop(), 0, nil)

	if err := s.Sync(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Sync() error = %v, want %v", err, boom)
	}
	st := s.Status()
	if st.LastError == "" || !st.LastSuccess.IsZero() || st.Runs != 1 {
		t.Errorf("Status() after failure = %+v", st)
	}

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	st = s.Status()
	if st.LastError != "" || st.LastSuccess.IsZero() || st.Runs != 2 {
		t.Errorf("Status() after success = %+v", st)
	}
	if len(st.Created) != 1 || st.Created[0] != "RegionOne" || st.Unchanged != 1 {
		t.Errorf("Status() counts = %+v", st)
	}
}

func TestEndpointSyncer_StartSurvivesInitialFailure(t *testing.T) {
	rec := newCountingReconciler(errors.New("keystone down"))
	trigger := make(chan struct{}, 1)
	s := NewEndpointSyncer(rec, logger.Nop(), 0, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	waitCall(t, rec)

	trigger <- struct{}{}
	waitCall(t, rec)

	if rec.count() != 2 {
		t.Errorf("reconciliations = %d, want 2", rec.count())
	}
}

func TestEndpointSyncer_Periodic(t *testing.T) {
	rec := newCountingReconciler()
	s := NewEndpointSyncer(rec, logger.Nop(), 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitCall(t, rec) // initial
	waitCall(t, rec) // first tick
	s.Stop()
	s.Stop() // idempotent

	if rec.count() < 2 {
		t.Errorf("reconciliations = %d, want at least 2", rec.count())
	}
}
