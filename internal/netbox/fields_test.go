package netbox

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		name   string
		input  interface{}
		expect int
	}{
		{"float64", float64(42), 42},
		{"int", 7, 7},
		{"json.Number", json.Number("99"), 99},
		{"nil", nil, 0},
		{"string", "not a number", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := toInt(tc.input)
			if got != tc.expect {
				t.Errorf("toInt(%v) = %d, want %d", tc.input, got, tc.expect)
			}
		})
	}
}

func TestStringField(t *testing.T) {
	obj := map[string]interface{}{
		"name":  "hello",
		"count": 42,
		"empty": nil,
	}
	if got := stringField(obj, "name"); got != "hello" {
		t.Errorf("stringField(name) = %q, want %q", got, "hello")
	}
	if got := stringField(obj, "count"); got != "" {
		t.Errorf("stringField(count) = %q, want empty", got)
	}
	if got := stringField(obj, "missing"); got != "" {
		t.Errorf("stringField(missing) = %q, want empty", got)
	}
}

func TestResourceName(t *testing.T) {
	tests := []struct {
		name   string
		input  models.Resource
		expect string
	}{
		{"name", models.Resource{"name": "DC1", "display": "DC1 (x)"}, "DC1"},
		{"prefix", models.Resource{"prefix": "10.0.0.0/8"}, "10.0.0.0/8"},
		{"address", models.Resource{"address": "10.0.0.1/32"}, "10.0.0.1/32"},
		{"display only", models.Resource{"display": "cable #4"}, "cable #4"},
		{"empty", models.Resource{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := resourceName(tc.input); got != tc.expect {
				t.Errorf("resourceName() = %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestTagSlugs(t *testing.T) {
	r := models.Resource{
		"tags": []interface{}{
			map[string]interface{}{"id": float64(1), "slug": "available"},
			map[string]interface{}{"id": float64(2), "slug": "auto-generated"},
			"garbage",
		},
	}
	want := []string{"available", "auto-generated"}
	if got := tagSlugs(r); !reflect.DeepEqual(got, want) {
		t.Errorf("tagSlugs() = %v, want %v", got, want)
	}
	if got := tagSlugs(models.Resource{}); got != nil {
		t.Errorf("tagSlugs(no tags) = %v, want nil", got)
	}
}
