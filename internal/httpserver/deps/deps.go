package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/charge/internal/keystone"
	"github.com/MrSnakeDoc/charge/internal/logger"
	"github.com/MrSnakeDoc/charge/internal/scheduler"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SyncStatusSource exposes the outcome of the last reconciliation.
type SyncStatusSource interface {
	Status() scheduler.SyncStatus
}

type Deps struct {
	Logger           logger.Logger
	StartTime        time.Time
	Version          string
	Commit           string
	BuildDate        string
	GoVersion        string
	TimeNow          func() time.Time        // for testing, defaults to time.Now
	AllowedCIDRS     []string                // IPs allowed to access admin endpoints
	TrustProxy       bool                    // true if running behind a trusted reverse proxy
	TokenCache       Pinger                  // token cache store (Redis)
	Tokens           keystone.Tokens         // token provider, used to serve the catalog
	Desired          keystone.DesiredService // service registered by this process
	Sync             SyncStatusSource        // endpoint syncer
	ReconcileTrigger chan struct{}           // Channel to trigger a manual reconciliation
}
