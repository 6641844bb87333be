package netbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

func TestFind_LowestID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dcim/sites/" {
			t.Errorf("path = %s, want /api/dcim/sites/", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("name") != "DC1" || q.Get("brief") != "true" {
			t.Errorf("query = %v, want name=DC1&brief=true", q)
		}
		w.Write([]byte(`{"count":2,"next":null,"results":[{"id":9,"name":"DC1"},{"id":4,"name":"DC1"}]}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	got, err := c.Find(context.Background(), models.Site, "DC1")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if got == nil || got.RemoteID != 4 {
		t.Errorf("Find = %+v, want RemoteID 4", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":0,"next":null,"results":[]}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	got, err := c.Find(context.Background(), models.Prefix, "10.0.0.0/24")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if got != nil {
		t.Errorf("Find = %+v, want nil", got)
	}
}

func TestCreate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/ipam/prefixes/" {
			t.Errorf("got %s %s, want POST /api/ipam/prefixes/", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["prefix"] != "10.0.0.0/24" {
			t.Errorf("prefix = %v, want 10.0.0.0/24", body["prefix"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":12,"prefix":"10.0.0.0/24"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	got, err := c.Create(context.Background(), models.Prefix, "10.0.0.0/24", map[string]interface{}{"prefix": "10.0.0.0/24"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if got.RemoteID != 12 || got.NaturalKey != "10.0.0.0/24" {
		t.Errorf("Create = %+v", got)
	}
}

func TestCreate_Conflict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"slug":["tag with this slug already exists."]}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Create(context.Background(), models.Tag, "prod", map[string]interface{}{"name": "prod"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Conflict() {
		t.Fatalf("Create error = %v, want a conflict", err)
	}
}

func TestUpdate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PATCH" || r.URL.Path != "/api/dcim/devices/33/" {
			t.Errorf("got %s %s, want PATCH /api/dcim/devices/33/", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"id":33,"name":"sw1"}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	got, err := c.Update(context.Background(), models.Device, 33, map[string]interface{}{"serial": "X1"})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got.RemoteID != 33 || got.NaturalKey != "sw1" {
		t.Errorf("Update = %+v", got)
	}
}

func TestPreflight(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status/":
			w.Write([]byte(`{"netbox-version":"4.1.0"}`))
		case "/api/extras/tags/":
			// MAX_PAGE_SIZE below the requested limit and no next link
			w.Write([]byte(`{"count":3,"next":null,"results":[{"id":1}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := newTestClient(ts)
	err := c.Preflight(context.Background())
	if !errors.Is(err, models.ErrIncompleteListing) {
		t.Fatalf("Preflight error = %v, want ErrIncompleteListing", err)
	}
	if c.Version() != "4.1.0" {
		t.Errorf("Version() = %q, want 4.1.0", c.Version())
	}
}
