package netbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StatusResponse holds the parts of /api/status/ we use.
type StatusResponse struct {
	Version string `json:"netbox-version"`
}

// ParseStatusResponse extracts the version from a /api/status/ body.
func ParseStatusResponse(body []byte) (*StatusResponse, error) {
	var resp StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing status response: %w", err)
	}
	if resp.Version == "" {
		return nil, fmt.Errorf("status response missing netbox-version field")
	}
	// "4.1.3-Docker-3.0.2" -> "4.1.3"
	if i := strings.IndexAny(resp.Version, "-+ "); i > 0 {
		resp.Version = resp.Version[:i]
	}
	return &resp, nil
}

// Status reads the server version and remembers it for Version.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	body, err := c.Get(ctx, "/api/status/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := ParseStatusResponse(body)
	if err != nil {
		return nil, err
	}
	c.version = resp.Version
	return resp, nil
}

// Version returns the version read by Status, or "" before that.
func (c *Client) Version() string {
	return c.version
}

// CompareVersions performs a simple semver comparison.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
// Handles partial versions (e.g. "4.0" vs "4.0.8").
func CompareVersions(a, b string) int {
	aParts := parseVersionParts(a)
	bParts := parseVersionParts(b)

	maxLen := len(aParts)
	if len(bParts) > maxLen {
		maxLen = len(bParts)
	}

	for i := 0; i < maxLen; i++ {
		var av, bv int
		if i < len(aParts) {
			av = aParts[i]
		}
		if i < len(bParts) {
			bv = bParts[i]
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	return 0
}

// VersionAtLeast returns true if version >= min. An unknown version is
// assumed to be current.
func VersionAtLeast(version, min string) bool {
	if version == "" || min == "" {
		return true
	}
	return CompareVersions(version, min) >= 0
}

func parseVersionParts(v string) []int {
	v = strings.TrimPrefix(v, "v")
	parts := strings.Split(v, ".")
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		result = append(result, n)
	}
	return result
}
