package keystone

// InterfacePublic is the endpoint interface visible to external clients.
const InterfacePublic = "public"

// DefaultServiceDescription is used when the desired service has no description.
const DefaultServiceDescription = "Charge Service for OpenStack"

// Token is the cached authentication state.
//
// Catalog holds the normalized catalog (see BuildCatalog), never the raw one.
type Token struct {
	Value     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	IssuedAt  string  `json:"issued_at,omitempty"`
	Catalog   Catalog `json:"catalog"`
}

// Access is what callers of GetToken receive.
type Access struct {
	Token    string  `json:"token"`
	Endpoint Catalog `json:"endpoint"`
}

// Catalog maps service name -> region id -> public URL.
type Catalog map[string]map[string]string

// URL returns the public URL of a service in a region.
func (c Catalog) URL(service, region string) (string, bool) {
	regions, ok := c[service]
	if !ok {
		return "", false
	}
	u, ok := regions[region]
	return u, ok
}

// CatalogService is one entry of the raw catalog returned with a token.
type CatalogService struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	Type      string            `json:"type,omitempty"`
	Endpoints []CatalogEndpoint `json:"endpoints"`
}

// CatalogEndpoint is one endpoint of a raw catalog entry.
type CatalogEndpoint struct {
	ID        string `json:"id,omitempty"`
	Interface string `json:"interface"`
	RegionID  string `json:"region_id"`
	Region    string `json:"region,omitempty"`
	URL       string `json:"url"`
}

// RawToken is the "token" object of an /auth/tokens response.
//
// Some backends put the credential in the body; Keystone proper only sends it
// in the X-Subject-Token header.
type RawToken struct {
	Value     string           `json:"token,omitempty"`
	ExpiresAt string           `json:"expires_at"`
	IssuedAt  string           `json:"issued_at,omitempty"`
	Catalog   []CatalogService `json:"catalog"`
}

// PasswordCredentials identify a user and the single project the token is scoped to.
type PasswordCredentials struct {
	UserID    string
	Password  string
	ProjectID string
}

// Service is a service record of the identity backend.
type Service struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// Endpoint is an endpoint record of the identity backend.
type Endpoint struct {
	ID        string `json:"id,omitempty"`
	ServiceID string `json:"service_id"`
	Interface string `json:"interface"`
	RegionID  string `json:"region_id"`
	URL       string `json:"url"`
}

// DesiredService describes the service this process registers and where it lives.
type DesiredService struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Description string            `yaml:"description,omitempty"`
	Endpoints   map[string]string `yaml:"endpoints"` // region id -> URL
}
