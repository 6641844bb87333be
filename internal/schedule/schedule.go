// Package schedule orders entity types into migration stages.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rflorenc/racktables-migrator/internal/models"
)

// Edge declares that Before must be migrated before After.
type Edge struct {
	Before models.EntityType
	After  models.EntityType
}

// Scheduler holds the stage order computed from a static edge set.
type Scheduler struct {
	stages [][]models.EntityType
}

// New sorts every entity type into stages. A cycle in edges is a
// configuration defect and is returned as models.ErrDependencyCycle.
func New(edges []Edge) (*Scheduler, error) {
	nodes := models.AllEntityTypes()
	n := len(nodes)

	indeg := make([]int, n)
	out := make([][]int, n)
	seen := make(map[Edge]bool, len(edges))

	for _, e := range edges {
		b, a := int(e.Before), int(e.After)
		if b < 0 || b >= n || a < 0 || a >= n {
			return nil, fmt.Errorf("edge %v -> %v references an unknown entity type", e.Before, e.After)
		}
		if b == a {
			return nil, fmt.Errorf("%w: %v depends on itself", models.ErrDependencyCycle, e.Before)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		indeg[a]++
		out[b] = append(out[b], a)
	}

	// Kahn's algorithm, one level at a time: everything ready together forms
	// a stage. Levels are sorted by enum order so the result is deterministic.
	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	s := &Scheduler{}
	placed := 0
	for len(ready) > 0 {
		sort.Ints(ready)
		stage := make([]models.EntityType, 0, len(ready))
		var next []int
		for _, i := range ready {
			stage = append(stage, models.EntityType(i))
			placed++
			for _, j := range out[i] {
				indeg[j]--
				if indeg[j] == 0 {
					next = append(next, j)
				}
			}
		}
		s.stages = append(s.stages, stage)
		ready = next
	}

	if placed != n {
		var stuck []string
		for i := 0; i < n; i++ {
			if indeg[i] > 0 {
				stuck = append(stuck, models.EntityType(i).String())
			}
		}
		return nil, fmt.Errorf("%w: %s", models.ErrDependencyCycle, strings.Join(stuck, ", "))
	}
	return s, nil
}

// OrderedStages returns the stages in processing order. Types inside one
// stage do not depend on each other.
func (s *Scheduler) OrderedStages() [][]models.EntityType {
	out := make([][]models.EntityType, len(s.stages))
	for i, st := range s.stages {
		out[i] = append([]models.EntityType(nil), st...)
	}
	return out
}

// Names renders the stages for logs and the run report.
func (s *Scheduler) Names() [][]string {
	out := make([][]string, len(s.stages))
	for i, st := range s.stages {
		for _, t := range st {
			out[i] = append(out[i], t.String())
		}
	}
	return out
}
