package keystone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type memoryCache struct {
	mu     sync.Mutex
	tokens map[string]*Token
	sets   int
	gets   int
	getErr error
	setErr error
	// firstRead, when set, is what the first Get returns instead of the stored token
	firstRead *Token
}

func newMemoryCache() *memoryCache {
	return &memoryCache{tokens: make(map[string]*Token)}
}

func (c *memoryCache) Get(_ context.Context, key string) (*Token, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	c.gets++
	if c.gets == 1 && c.firstRead != nil {
		return c.firstRead, true, nil
	}
	tok, ok := c.tokens[key]
	return tok, ok, nil
}

func (c *memoryCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func (c *memoryCache) Set(_ context.Context, key string, tok *Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.tokens[key] = tok
	c.sets++
	return nil
}

type stubAuth struct {
	mu      sync.Mutex
	calls   int
	resp    *AuthResponse
	err     error
	delay   time.Duration
	entered chan struct{} // receives once per call when set
}

func (a *stubAuth) Authenticate(ctx context.Context, _ PasswordCredentials) (*AuthResponse, error) {
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.resp, a.err
}

func (a *stubAuth) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type staticTokens struct {
	access *Access
	err    error
}

func (s staticTokens) GetToken(context.Context) (*Access, error) {
	return s.access, s.err
}

// fakeIdentity is an in-memory identity backend that records every write.
type fakeIdentity struct {
	mu        sync.Mutex
	services  []Service
	endpoints []Endpoint
	nextID    int

	createdServices  []Service
	serviceTypePatch map[string]string
	createdEndpoints []Endpoint
	urlPatches       map[string]string

	omitCreatedID bool
	failRegions   map[string]error // CreateEndpoint failures by region
	failEndpoints map[string]error // UpdateEndpointURL failures by endpoint id
	listErr       error
	inFlight      int
	maxInFlight   int
	gate          chan struct{} // when set, writes block until it is closed
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		serviceTypePatch: make(map[string]string),
		urlPatches:       make(map[string]string),
		failRegions:      make(map[string]error),
		failEndpoints:    make(map[string]error),
	}
}

func (f *fakeIdentity) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeIdentity) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (f *fakeIdentity) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeIdentity) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.createdServices) + len(f.serviceTypePatch) + len(f.createdEndpoints) + len(f.urlPatches)
}

func (f *fakeIdentity) resetWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdServices = nil
	f.serviceTypePatch = make(map[string]string)
	f.createdEndpoints = nil
	f.urlPatches = make(map[string]string)
}

func (f *fakeIdentity) ListServices(_ context.Context, token string) ([]Service, error) {
	if token == "" {
		return nil, errors.New("missing token")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Service(nil), f.services...), nil
}

func (f *fakeIdentity) CreateService(_ context.Context, _ string, svc Service) (*Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc.ID = f.id("svc")
	f.services = append(f.services, svc)
	f.createdServices = append(f.createdServices, svc)
	if f.omitCreatedID {
		out := svc
		out.ID = ""
		return &out, nil
	}
	return &svc, nil
}

func (f *fakeIdentity) UpdateServiceType(_ context.Context, _, serviceID, serviceType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.services {
		if f.services[i].ID == serviceID {
			f.services[i].Type = serviceType
			f.serviceTypePatch[serviceID] = serviceType
			return nil
		}
	}
	return &APIError{Method: "PATCH", Path: "/services/" + serviceID, StatusCode: 404}
}

func (f *fakeIdentity) ListEndpoints(_ context.Context, _ string) ([]Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Endpoint(nil), f.endpoints...), nil
}

func (f *fakeIdentity) CreateEndpoint(_ context.Context, _ string, ep Endpoint) (*Endpoint, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failRegions[ep.RegionID]; err != nil {
		return nil, err
	}
	ep.ID = f.id("ep")
	f.endpoints = append(f.endpoints, ep)
	f.createdEndpoints = append(f.createdEndpoints, ep)
	return &ep, nil
}

func (f *fakeIdentity) UpdateEndpointURL(_ context.Context, _, endpointID, url string) error {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failEndpoints[endpointID]; err != nil {
		return err
	}
	for i := range f.endpoints {
		if f.endpoints[i].ID == endpointID {
			f.endpoints[i].URL = url
			f.urlPatches[endpointID] = url
			return nil
		}
	}
	return &APIError{Method: "PATCH", Path: "/endpoints/" + endpointID, StatusCode: 404}
}
