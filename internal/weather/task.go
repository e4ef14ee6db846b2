package weather

import (
	"fmt"

	"github.com/lstrojny/prometheus-weather-exporter/internal/cache"
)

// Task is one provider queried for one location.
type Task struct {
	Provider Provider
	Request  Request[Coordinates]
	Cache    *ResponseCache
}

// TaskSet is the static list of tasks executed on every collection.
type TaskSet []Task

// NewTaskSet pairs every provider with every location. Each provider gets its
// own response cache sized for its locations. Provider ids must be unique.
func NewTaskSet(providers []Provider, locations []Request[Coordinates]) (TaskSet, error) {
	seen := make(map[string]struct{}, len(providers))
	tasks := make(TaskSet, 0, len(providers)*len(locations))

	for _, p := range providers {
		if _, dup := seen[p.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, p.ID())
		}
		seen[p.ID()] = struct{}{}

		responses := cache.New[[]byte](cache.WithMaxSize(len(locations) * max(1, p.CacheCardinality())))
		for _, loc := range locations {
			tasks = append(tasks, Task{Provider: p, Request: loc, Cache: responses})
		}
	}

	return tasks, nil
}

// Caches returns every distinct response cache of the set.
func (s TaskSet) Caches() []*ResponseCache {
	seen := make(map[*ResponseCache]struct{})
	var caches []*ResponseCache
	for _, t := range s {
		if t.Cache == nil {
			continue
		}
		if _, ok := seen[t.Cache]; ok {
			continue
		}
		seen[t.Cache] = struct{}{}
		caches = append(caches, t.Cache)
	}
	return caches
}
