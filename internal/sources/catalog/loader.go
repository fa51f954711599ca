package catalog

import (
	"fmt"
	"net/url"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/charge/internal/keystone"
)

// Loader reads the desired service registration from a YAML file
type Loader struct {
	filePath string
}

// NewLoader creates a new catalog loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads, expands and validates the catalog file
func (l *Loader) Load() (keystone.DesiredService, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return keystone.DesiredService{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. ${VAR} references are replaced with
// environment values before decoding.
func Parse(data []byte) (keystone.DesiredService, error) {
	var svc keystone.DesiredService
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &svc); err != nil {
		return keystone.DesiredService{}, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	if err := Validate(svc); err != nil {
		return keystone.DesiredService{}, err
	}
	if svc.Description == "" {
		svc.Description = keystone.DefaultServiceDescription
	}
	return svc, nil
}

// Validate checks that the service can be registered
func Validate(svc keystone.DesiredService) error {
	if svc.Name == "" {
		return fmt.Errorf("catalog: service name is required")
	}
	if svc.Type == "" {
		return fmt.Errorf("catalog: service type is required")
	}
	if len(svc.Endpoints) == 0 {
		return fmt.Errorf("catalog: at least one endpoint is required")
	}

	regions := make([]string, 0, len(svc.Endpoints))
	for region := range svc.Endpoints {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	for _, region := range regions {
		if region == "" {
			return fmt.Errorf("catalog: empty region id")
		}
		raw := svc.Endpoints[region]
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("catalog: invalid url for region %s: %w", region, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("catalog: url for region %s must be absolute, got %q", region, raw)
		}
	}
	return nil
}
