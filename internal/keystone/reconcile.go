package keystone

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/charge/internal/logger"
)

// StatusKind classifies one desired region against the registered endpoints.
type StatusKind int

const (
	// StatusAbsent means no public endpoint of the service exists in the region.
	StatusAbsent StatusKind = iota
	// StatusMatch means the public endpoint exists with the desired URL.
	StatusMatch
	// StatusStale means the public endpoint exists with another URL.
	StatusStale
)

func (k StatusKind) String() string {
	switch k {
	case StatusMatch:
		return "match"
	case StatusStale:
		return "stale"
	default:
		return "absent"
	}
}

// RegionStatus is the outcome of comparing one region. EndpointID is set for StatusStale.
type RegionStatus struct {
	Kind       StatusKind
	EndpointID string
}

// PlanEndpoints computes a status for every region of desired.
//
// Only public endpoints of serviceID are considered. When a region has several
// candidates, a matching URL wins, otherwise the last one seen is kept.
func PlanEndpoints(desired map[string]string, endpoints []Endpoint, serviceID string) map[string]RegionStatus {
	plan := make(map[string]RegionStatus, len(desired))
	for region := range desired {
		plan[region] = RegionStatus{Kind: StatusAbsent}
	}

	for _, ep := range endpoints {
		want, ok := desired[ep.RegionID]
		if !ok || ep.ServiceID != serviceID || ep.Interface != InterfacePublic {
			continue
		}
		if plan[ep.RegionID].Kind == StatusMatch {
			continue
		}
		if ep.URL == want {
			plan[ep.RegionID] = RegionStatus{Kind: StatusMatch}
		} else {
			plan[ep.RegionID] = RegionStatus{Kind: StatusStale, EndpointID: ep.ID}
		}
	}

	return plan
}

// Result summarizes one reconciliation.
type Result struct {
	Services       []Service // listing fetched before any change
	ServiceID      string
	ServiceCreated bool
	ServiceRetyped bool
	Created        []string // regions
	Updated        []string // regions
	Unchanged      []string // regions
}

// Corrections is the number of endpoint calls the reconciliation issued.
func (r *Result) Corrections() int {
	return len(r.Created) + len(r.Updated)
}

// Tokens is what the Reconciler needs from a TokenProvider.
type Tokens interface {
	GetToken(ctx context.Context) (*Access, error)
}

// Reconciler converges the registration of one service on the identity backend.
type Reconciler struct {
	tokens  Tokens
	api     IdentityAPI
	desired DesiredService
	logger  logger.Logger
}

// NewReconciler creates a reconciler for desired.
func NewReconciler(tokens Tokens, api IdentityAPI, desired DesiredService, log logger.Logger) *Reconciler {
	if desired.Description == "" {
		desired.Description = DefaultServiceDescription
	}
	return &Reconciler{
		tokens:  tokens,
		api:     api,
		desired: desired,
		logger:  log,
	}
}

// Desired returns the service definition being enforced.
func (r *Reconciler) Desired() DesiredService {
	return r.desired
}

// InitEndpoint reconciles and returns the service listing fetched before any
// change was applied. Callers wanting the converged view must list again.
func (r *Reconciler) InitEndpoint(ctx context.Context) ([]Service, error) {
	res, err := r.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	return res.Services, nil
}

// Reconcile makes sure the service exists with the desired type and that each
// desired region has a public endpoint with the desired URL.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	access, err := r.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	token := access.Token

	services, err := r.api.ListServices(ctx, token)
	if err != nil {
		return nil, err
	}

	res := &Result{Services: services}

	serviceID, err := r.ensureService(ctx, token, services, res)
	if err != nil {
		return nil, err
	}
	res.ServiceID = serviceID

	endpoints, err := r.api.ListEndpoints(ctx, token)
	if err != nil {
		return nil, err
	}

	plan := PlanEndpoints(r.desired.Endpoints, endpoints, serviceID)
	if err := r.converge(ctx, token, serviceID, plan, res); err != nil {
		return nil, err
	}

	r.logger.Info("endpoint reconciliation finished",
		logger.String("service", r.desired.Name),
		logger.String("service_id", serviceID),
		logger.Strings("created", res.Created),
		logger.Strings("updated", res.Updated),
		logger.Int("unchanged", len(res.Unchanged)))

	return res, nil
}

// ensureService returns the id of the desired service, creating or retyping it first.
func (r *Reconciler) ensureService(ctx context.Context, token string, services []Service, res *Result) (string, error) {
	found := findService(services, r.desired.Name)

	switch {
	case found == nil:
		r.logger.Info("service not registered, creating",
			logger.String("name", r.desired.Name),
			logger.String("type", r.desired.Type))

		created, err := r.api.CreateService(ctx, token, Service{
			Name:        r.desired.Name,
			Type:        r.desired.Type,
			Description: r.desired.Description,
		})
		if err != nil {
			return "", err
		}
		res.ServiceCreated = true
		if created != nil && created.ID != "" {
			return created.ID, nil
		}
		return r.lookupServiceID(ctx, token)

	case found.Type != r.desired.Type:
		r.logger.Info("service type differs, updating",
			logger.String("service_id", found.ID),
			logger.String("from", found.Type),
			logger.String("to", r.desired.Type))

		if err := r.api.UpdateServiceType(ctx, token, found.ID, r.desired.Type); err != nil {
			return "", err
		}
		res.ServiceRetyped = true
	}

	return found.ID, nil
}

// lookupServiceID lists services again when a create answer carried no id.
func (r *Reconciler) lookupServiceID(ctx context.Context, token string) (string, error) {
	services, err := r.api.ListServices(ctx, token)
	if err != nil {
		return "", err
	}
	if svc := findService(services, r.desired.Name); svc != nil && svc.ID != "" {
		return svc.ID, nil
	}
	return "", fmt.Errorf("%w: service %s not found after creation", ErrReconciliation, r.desired.Name)
}

func findService(services []Service, name string) *Service {
	for i := range services {
		if services[i].Name == name {
			return &services[i]
		}
	}
	return nil
}

// converge issues one call per non-matching region, all at once, and waits for every one.
func (r *Reconciler) converge(ctx context.Context, token, serviceID string, plan map[string]RegionStatus, res *Result) error {
	regions := make([]string, 0, len(plan))
	for region := range plan {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, region := range regions {
		status := plan[region]
		url := r.desired.Endpoints[region]

		switch status.Kind {
		case StatusMatch:
			res.Unchanged = append(res.Unchanged, region)
			continue
		case StatusAbsent:
			res.Created = append(res.Created, region)
		case StatusStale:
			res.Updated = append(res.Updated, region)
		}

		g.Go(func() error {
			err := r.apply(ctx, token, serviceID, region, url, status)
			if err != nil {
				r.logger.Error("endpoint correction failed",
					logger.String("region", region),
					logger.String("status", status.Kind.String()),
					logger.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrReconciliation, errors.Join(errs...))
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, token, serviceID, region, url string, status RegionStatus) error {
	switch status.Kind {
	case StatusAbsent:
		r.logger.Info("creating endpoint",
			logger.String("region", region),
			logger.String("url", url))
		_, err := r.api.CreateEndpoint(ctx, token, Endpoint{
			ServiceID: serviceID,
			Interface: InterfacePublic,
			RegionID:  region,
			URL:       url,
		})
		return err
	case StatusStale:
		r.logger.Info("updating endpoint",
			logger.String("region", region),
			logger.String("endpoint_id", status.EndpointID),
			logger.String("url", url))
		return r.api.UpdateEndpointURL(ctx, token, status.EndpointID, url)
	}
	return nil
}
