// Package resolve maps source records onto target objects: it looks them up
// by natural key, creates what is missing and remembers every remote id it
// learned for the rest of the run.
package resolve

import (
	"sort"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// Cache is the run-scoped (type, natural key) -> remote id map. It holds at
// most one id per key; the first id stored wins. It is not safe for
// concurrent use.
type Cache struct {
	ids map[models.EntityType]map[string]int
}

func NewCache() *Cache {
	return &Cache{ids: make(map[models.EntityType]map[string]int)}
}

// Get returns the remote id cached for a key.
func (c *Cache) Get(t models.EntityType, key string) (int, bool) {
	id, ok := c.ids[t][key]
	return id, ok
}

// Put stores id for key unless the key is already resolved.
func (c *Cache) Put(t models.EntityType, key string, id int) {
	m, ok := c.ids[t]
	if !ok {
		m = make(map[string]int)
		c.ids[t] = m
	}
	if _, exists := m[key]; !exists {
		m[key] = id
	}
}

// Keys lists the resolved natural keys of a type in sorted order.
func (c *Cache) Keys(t models.EntityType) []string {
	keys := make([]string, 0, len(c.ids[t]))
	for k := range c.ids[t] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len counts every cached key.
func (c *Cache) Len() int {
	n := 0
	for _, m := range c.ids {
		n += len(m)
	}
	return n
}
