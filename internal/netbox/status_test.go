package netbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseStatusResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"plain", `{"netbox-version":"4.1.3","python-version":"3.12"}`, "4.1.3", false},
		{"docker suffix", `{"netbox-version":"3.7.8-Docker-2.8.0"}`, "3.7.8", false},
		{"missing", `{"django-version":"5.0"}`, "", true},
		{"invalid json", `not json`, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := ParseStatusResponse([]byte(tc.body))
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && resp.Version != tc.want {
				t.Errorf("Version = %q, want %q", resp.Version, tc.want)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"3.7.8", "4.0", -1},
		{"4.0.0", "4.0", 0},
		{"4.2.1", "4.2", 1},
		{"v4.1", "4.1.0", 0},
		{"10.0", "9.9.9", 1},
	}
	for _, tc := range tests {
		t.Run(tc.a+"_vs_"+tc.b, func(t *testing.T) {
			got := CompareVersions(tc.a, tc.b)
			if got != tc.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		version, min string
		want         bool
	}{
		{"4.1.3", "4.0", true},
		{"3.7.8", "4.0", false},
		{"4.2.0", "4.2", true},
		{"", "4.0", true}, // unknown version = assume current
		{"4.0", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.version+"_gte_"+tc.min, func(t *testing.T) {
			got := VersionAtLeast(tc.version, tc.min)
			if got != tc.want {
				t.Errorf("VersionAtLeast(%q, %q) = %v, want %v", tc.version, tc.min, got, tc.want)
			}
		})
	}
}

func TestClient_Status(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status/" {
			t.Errorf("path = %s, want /api/status/", r.URL.Path)
		}
		w.Write([]byte(`{"netbox-version":"3.6.9"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if c.Version() != "" {
		t.Fatalf("Version() before Status = %q", c.Version())
	}
	if _, err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if c.Version() != "3.6.9" {
		t.Errorf("Version() = %q, want 3.6.9", c.Version())
	}
}
