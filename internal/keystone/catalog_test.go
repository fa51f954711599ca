package keystone

import "testing"

func TestVersionedURL(t *testing.T) {
	tests := []struct {
		name     string
		service  string
		url      string
		expected string
	}{
		{
			name:     "network without version",
			service:  ServiceNetwork,
			url:      "http://x/v3",
			expected: "http://x/v3/v2.0",
		},
		{
			name:     "network already versioned",
			service:  ServiceNetwork,
			url:      "http://x/v2.0/v3",
			expected: "http://x/v2.0/v3",
		},
		{
			name:     "network bare 2.0 segment",
			service:  ServiceNetwork,
			url:      "http://x:9696/2.0",
			expected: "http://x:9696/2.0",
		},
		{
			name:     "image without version",
			service:  ServiceImage,
			url:      "http://img:9292",
			expected: "http://img:9292/v2",
		},
		{
			name:     "image already versioned",
			service:  ServiceImage,
			url:      "http://img:9292/v2",
			expected: "http://img:9292/v2",
		},
		{
			name:     "other service untouched",
			service:  "nova",
			url:      "http://compute:8774",
			expected: "http://compute:8774",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VersionedURL(tt.service, tt.url)
			if got != tt.expected {
				t.Errorf("VersionedURL(%q, %q) = %q, want %q", tt.service, tt.url, got, tt.expected)
			}
			if again := VersionedURL(tt.service, got); again != got {
				t.Errorf("VersionedURL is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestBuildCatalog(t *testing.T) {
	raw := []CatalogService{
		{
			Name: ServiceNetwork,
			Endpoints: []CatalogEndpoint{
				{Interface: "public", RegionID: "RegionOne", URL: "http://net:9696"},
				{Interface: "internal", RegionID: "RegionOne", URL: "http://net-int:9696"},
				{Interface: "admin", RegionID: "RegionTwo", URL: "http://net-adm:9696"},
			},
		},
		{
			Name: ServiceImage,
			Endpoints: []CatalogEndpoint{
				{Interface: "public", RegionID: "RegionOne", URL: "http://img:9292"},
			},
		},
		{
			Name: "nova",
			Endpoints: []CatalogEndpoint{
				{Interface: "public", Region: "RegionTwo", URL: "http://compute:8774/v2.1"},
			},
		},
		{
			Name: "internal-only",
			Endpoints: []CatalogEndpoint{
				{Interface: "internal", RegionID: "RegionOne", URL: "http://hidden"},
			},
		},
	}

	catalog := BuildCatalog(raw)

	if u, _ := catalog.URL(ServiceNetwork, "RegionOne"); u != "http://net:9696/v2.0" {
		t.Errorf("neutron RegionOne = %q", u)
	}
	if _, ok := catalog.URL(ServiceNetwork, "RegionTwo"); ok {
		t.Error("admin endpoint leaked into catalog")
	}
	if len(catalog[ServiceNetwork]) != 1 {
		t.Errorf("neutron regions = %v, want only public RegionOne", catalog[ServiceNetwork])
	}
	if u, _ := catalog.URL(ServiceImage, "RegionOne"); u != "http://img:9292/v2" {
		t.Errorf("glance RegionOne = %q", u)
	}
	if u, _ := catalog.URL("nova", "RegionTwo"); u != "http://compute:8774/v2.1" {
		t.Errorf("nova RegionTwo = %q (legacy region field)", u)
	}

	regions, ok := catalog["internal-only"]
	if !ok {
		t.Fatal("service without public endpoints should still have an entry")
	}
	if len(regions) != 0 {
		t.Errorf("internal-only regions = %v, want empty", regions)
	}

	for svc, regions := range catalog {
		for region, u := range regions {
			if u == "http://net-int:9696" || u == "http://net-adm:9696" || u == "http://hidden" {
				t.Errorf("non-public url %q surfaced for %s/%s", u, svc, region)
			}
		}
	}
}

func TestFormatEndpoint(t *testing.T) {
	catalogs := []LegacyCatalog{
		{
			Name: ServiceNetwork,
			Endpoints: []map[string]string{
				{"region": "RegionOne", "publicURL": "http://net:9696", "adminURL": "http://adm:9696"},
			},
		},
		{
			Name: ServiceImage,
			Endpoints: []map[string]string{
				{"region": "RegionOne", "publicURL": "http://img:9292/v2"},
			},
		},
		{
			Name: "nova",
			Endpoints: []map[string]string{
				{"publicURL": "http://compute:8774"},
			},
		},
	}

	FormatEndpoint(catalogs)

	net := catalogs[0].Endpoints[0]
	if net["publicURL"] != "http://net:9696/v2.0" || net["adminURL"] != "http://adm:9696/v2.0" {
		t.Errorf("neutron endpoint = %v", net)
	}
	if net["region"] != "RegionOne" {
		t.Errorf("non URL field changed: %q", net["region"])
	}
	// no check for an existing version
	if got := catalogs[1].Endpoints[0]["publicURL"]; got != "http://img:9292/v2/v2" {
		t.Errorf("glance publicURL = %q", got)
	}
	if got := catalogs[2].Endpoints[0]["publicURL"]; got != "http://compute:8774" {
		t.Errorf("nova publicURL = %q, want untouched", got)
	}

	FormatEndpoint(catalogs)
	if got := catalogs[0].Endpoints[0]["publicURL"]; got != "http://net:9696/v2.0/v2.0" {
		t.Errorf("second pass publicURL = %q, want suffix appended twice", got)
	}
}
