package netbox

import (
	"encoding/json"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// resourceID extracts the numeric ID from a Resource.
func resourceID(r models.Resource) int {
	return toInt(r["id"])
}

// resourceName returns the display name of a Resource.
func resourceName(r models.Resource) string {
	for _, field := range []string{"name", "prefix", "address", "label", "display"} {
		if v := stringField(r, field); v != "" {
			return v
		}
	}
	return ""
}

// stringField safely extracts a string field, returning "" if nil.
func stringField(obj map[string]interface{}, field string) string {
	if v, ok := obj[field].(string); ok {
		return v
	}
	return ""
}

// tagSlugs returns the slugs of the nested tags of a Resource.
func tagSlugs(r models.Resource) []string {
	tags, ok := r["tags"].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, t := range tags {
		if tm, ok := t.(map[string]interface{}); ok {
			if s := stringField(tm, "slug"); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// toInt converts various numeric types to int.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
