package keystone

import "strings"

const (
	// ServiceNetwork is the catalog name of the networking service.
	ServiceNetwork = "neutron"
	// ServiceImage is the catalog name of the image service.
	ServiceImage = "glance"

	networkVersionSuffix = "/v2.0"
	imageVersionSuffix   = "/v2"
)

// BuildCatalog turns the raw catalog of a token into a Catalog.
//
// Only public endpoints are kept. Every service gets an entry, possibly empty.
// Network and image URLs get their API version appended when missing.
func BuildCatalog(raw []CatalogService) Catalog {
	catalog := make(Catalog, len(raw))
	for _, svc := range raw {
		regions, ok := catalog[svc.Name]
		if !ok {
			regions = make(map[string]string, len(svc.Endpoints))
			catalog[svc.Name] = regions
		}
		for _, ep := range svc.Endpoints {
			if ep.Interface != InterfacePublic {
				continue
			}
			region := ep.RegionID
			if region == "" {
				region = ep.Region
			}
			regions[region] = VersionedURL(svc.Name, ep.URL)
		}
	}
	return catalog
}

// VersionedURL appends the mandatory API version of the network and image
// services when the URL does not carry it yet. Other services pass through.
func VersionedURL(service, url string) string {
	switch service {
	case ServiceNetwork:
		if !hasNetworkVersion(url) {
			return url + networkVersionSuffix
		}
	case ServiceImage:
		if !hasImageVersion(url) {
			return url + imageVersionSuffix
		}
	}
	return url
}

// hasNetworkVersion accepts both "/2.0" and "/v2.0" path segments.
func hasNetworkVersion(url string) bool {
	return strings.Contains(url, "/2.0") || strings.Contains(url, networkVersionSuffix)
}

func hasImageVersion(url string) bool {
	return strings.Contains(url, imageVersionSuffix)
}

// LegacyCatalog is the v2-style catalog shape where each endpoint carries
// several URL fields (publicURL, internalURL, adminURL, ...).
type LegacyCatalog struct {
	Name      string              `json:"name"`
	Type      string              `json:"type,omitempty"`
	Endpoints []map[string]string `json:"endpoints"`
}

// FormatEndpoint appends the API version to every "*URL" field of the network
// and image entries, in place.
//
// Unlike VersionedURL it does not look at the URL first: each call appends
// again, so callers must run it exactly once per catalog.
func FormatEndpoint(catalogs []LegacyCatalog) {
	for _, c := range catalogs {
		var suffix string
		switch c.Name {
		case ServiceNetwork:
			suffix = networkVersionSuffix
		case ServiceImage:
			suffix = imageVersionSuffix
		default:
			continue
		}
		for _, ep := range c.Endpoints {
			for key, val := range ep {
				if strings.HasSuffix(key, "URL") {
					ep[key] = val + suffix
				}
			}
		}
	}
}
