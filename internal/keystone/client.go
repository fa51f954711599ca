package keystone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/charge/internal/logger"
)

const (
	// HeaderSubjectToken carries the issued token on /auth/tokens responses.
	HeaderSubjectToken = "X-Subject-Token"
	// HeaderAuthToken authenticates management calls.
	HeaderAuthToken = "X-Auth-Token"

	// DefaultHTTPTimeout applies when no *http.Client is supplied.
	DefaultHTTPTimeout = 10 * time.Second

	// maxErrorBody bounds how much of a failed response ends up in APIError.
	maxErrorBody = 4 << 10
)

// AuthResponse is the decoded answer of POST /auth/tokens.
type AuthResponse struct {
	Token        *RawToken
	SubjectToken string // X-Subject-Token header, empty when absent
}

// Authenticator issues tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, creds PasswordCredentials) (*AuthResponse, error)
}

// IdentityAPI is the service and endpoint management surface used by the Reconciler.
type IdentityAPI interface {
	ListServices(ctx context.Context, token string) ([]Service, error)
	CreateService(ctx context.Context, token string, svc Service) (*Service, error)
	UpdateServiceType(ctx context.Context, token, serviceID, serviceType string) error
	ListEndpoints(ctx context.Context, token string) ([]Endpoint, error)
	CreateEndpoint(ctx context.Context, token string, ep Endpoint) (*Endpoint, error)
	UpdateEndpointURL(ctx context.Context, token, endpointID, url string) error
}

// Client talks JSON to a Keystone v3 API. It implements Authenticator and IdentityAPI.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

// NewClient creates a client for the identity API rooted at baseURL
// (ex: "http://keystone:5000/v3"). A nil httpClient gets DefaultHTTPTimeout.
func NewClient(baseURL string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		logger:  log,
	}
}

// request/response envelopes
type (
	authRequest struct {
		Auth authBody `json:"auth"`
	}
	authBody struct {
		Identity authIdentity `json:"identity"`
		Scope    authScope    `json:"scope"`
	}
	authIdentity struct {
		Methods  []string     `json:"methods"`
		Password authPassword `json:"password"`
	}
	authPassword struct {
		User authUser `json:"user"`
	}
	authUser struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	authScope struct {
		Project idRef `json:"project"`
	}
	idRef struct {
		ID string `json:"id"`
	}

	tokenEnvelope struct {
		Token *RawToken `json:"token"`
	}
	serviceEnvelope struct {
		Service Service `json:"service"`
	}
	servicesEnvelope struct {
		Services []Service `json:"services"`
	}
	serviceTypePatch struct {
		Service struct {
			Type string `json:"type"`
		} `json:"service"`
	}
	endpointEnvelope struct {
		Endpoint Endpoint `json:"endpoint"`
	}
	endpointsEnvelope struct {
		Endpoints []Endpoint `json:"endpoints"`
	}
	endpointURLPatch struct {
		Endpoint struct {
			URL string `json:"url"`
		} `json:"endpoint"`
	}
)

// Authenticate requests a project-scoped token with the password method.
func (c *Client) Authenticate(ctx context.Context, creds PasswordCredentials) (*AuthResponse, error) {
	body := authRequest{Auth: authBody{
		Identity: authIdentity{
			Methods:  []string{"password"},
			Password: authPassword{User: authUser{ID: creds.UserID, Password: creds.Password}},
		},
		Scope: authScope{Project: idRef{ID: creds.ProjectID}},
	}}

	var out tokenEnvelope
	header, err := c.do(ctx, http.MethodPost, "/auth/tokens", "", body, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if out.Token == nil {
		return nil, fmt.Errorf("%w: auth response has no token object", ErrCatalogMalformed)
	}

	return &AuthResponse{
		Token:        out.Token,
		SubjectToken: header.Get(HeaderSubjectToken),
	}, nil
}

// ListServices returns every service registered on the backend.
func (c *Client) ListServices(ctx context.Context, token string) ([]Service, error) {
	var out servicesEnvelope
	if _, err := c.do(ctx, http.MethodGet, "/services", token, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return out.Services, nil
}

// CreateService registers a new service and returns the stored record.
func (c *Client) CreateService(ctx context.Context, token string, svc Service) (*Service, error) {
	var out serviceEnvelope
	if _, err := c.do(ctx, http.MethodPost, "/services", token, serviceEnvelope{Service: svc}, &out); err != nil {
		return nil, fmt.Errorf("failed to create service %s: %w", svc.Name, err)
	}
	return &out.Service, nil
}

// UpdateServiceType changes only the type of an existing service.
func (c *Client) UpdateServiceType(ctx context.Context, token, serviceID, serviceType string) error {
	var patch serviceTypePatch
	patch.Service.Type = serviceType
	if _, err := c.do(ctx, http.MethodPatch, "/services/"+serviceID, token, patch, nil); err != nil {
		return fmt.Errorf("failed to update service %s: %w", serviceID, err)
	}
	return nil
}

// ListEndpoints returns every endpoint registered on the backend.
func (c *Client) ListEndpoints(ctx context.Context, token string) ([]Endpoint, error) {
	var out endpointsEnvelope
	if _, err := c.do(ctx, http.MethodGet, "/endpoints", token, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	return out.Endpoints, nil
}

// CreateEndpoint registers a new endpoint.
func (c *Client) CreateEndpoint(ctx context.Context, token string, ep Endpoint) (*Endpoint, error) {
	var out endpointEnvelope
	if _, err := c.do(ctx, http.MethodPost, "/endpoints", token, endpointEnvelope{Endpoint: ep}, &out); err != nil {
		return nil, fmt.Errorf("failed to create endpoint in %s: %w", ep.RegionID, err)
	}
	return &out.Endpoint, nil
}

// UpdateEndpointURL changes only the URL of an existing endpoint.
func (c *Client) UpdateEndpointURL(ctx context.Context, token, endpointID, url string) error {
	var patch endpointURLPatch
	patch.Endpoint.URL = url
	if _, err := c.do(ctx, http.MethodPatch, "/endpoints/"+endpointID, token, patch, nil); err != nil {
		return fmt.Errorf("failed to update endpoint %s: %w", endpointID, err)
	}
	return nil
}

// do sends one JSON request and decodes the answer into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) (http.Header, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(HeaderAuthToken, token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.logger.Debug("keystone request",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrCatalogMalformed, method, path, err)
		}
	}

	return resp.Header, nil
}
