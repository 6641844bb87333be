package netbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// Find returns the object a natural key names, or nil when there is none.
// Duplicates left by earlier tooling resolve to the lowest id.
func (c *Client) Find(ctx context.Context, t models.EntityType, key string) (*models.TargetEntity, error) {
	path, err := Endpoint(t)
	if err != nil {
		return nil, err
	}
	q, err := lookupQuery(t, key)
	if err != nil {
		return nil, err
	}
	q.Set("brief", "true")

	results, err := c.GetAll(ctx, path, q)
	if err != nil {
		return nil, err
	}
	best := 0
	for _, r := range results {
		if id := resourceID(r); id > 0 && (best == 0 || id < best) {
			best = id
		}
	}
	if best == 0 {
		return nil, nil
	}
	return &models.TargetEntity{RemoteID: best, Type: t, NaturalKey: key}, nil
}

// Create posts a new object and returns it with its assigned id.
func (c *Client) Create(ctx context.Context, t models.EntityType, key string, payload map[string]interface{}) (*models.TargetEntity, error) {
	path, err := Endpoint(t)
	if err != nil {
		return nil, err
	}
	body, _, err := c.Post(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	id, err := decodeID(body)
	if err != nil {
		return nil, fmt.Errorf("creating %v %s: %w", t, key, err)
	}
	return &models.TargetEntity{RemoteID: id, Type: t, NaturalKey: key}, nil
}

// Update patches an existing object.
func (c *Client) Update(ctx context.Context, t models.EntityType, id int, payload map[string]interface{}) (*models.TargetEntity, error) {
	path, err := Endpoint(t)
	if err != nil {
		return nil, err
	}
	body, _, err := c.Patch(ctx, fmt.Sprintf("%s%d/", path, id), payload)
	if err != nil {
		return nil, err
	}
	var res models.Resource
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &models.TargetEntity{RemoteID: id, Type: t, NaturalKey: resourceName(res)}, nil
}

// Preflight verifies connectivity, reads the server version and makes sure
// list endpoints hand out every object. A server that truncates listings
// would make existing objects look missing and lead to duplicates.
func (c *Client) Preflight(ctx context.Context) error {
	if _, err := c.Status(ctx); err != nil {
		return fmt.Errorf("reading server status: %w", err)
	}
	path, _ := Endpoint(models.Tag)
	if _, err := c.GetAll(ctx, path, nil); err != nil {
		return fmt.Errorf("listing %s: %w", path, err)
	}
	return nil
}

func decodeID(body []byte) (int, error) {
	var res models.Resource
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("parsing response: %w", err)
	}
	id := resourceID(res)
	if id == 0 {
		return 0, fmt.Errorf("response has no id")
	}
	return id, nil
}
