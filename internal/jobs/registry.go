// Package jobs tracks which original artifact a jobId refers to. Entries are
// written at preprocess time and consulted at transform time, so transform
// never has to guess the original's filename from the id.
package jobs

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"

	"renovai/server/internal/domain"
	"renovai/server/internal/storage"
)

// Registry is an in-process jobId -> original artifact map with expiry.
// There is deliberately no durable backing store; a job that outlives the
// process (or its TTL) is gone.
type Registry struct {
	entries *cache.Cache
}

// NewRegistry creates a registry whose entries expire after ttl.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{entries: cache.New(ttl, ttl/2)}
}

// Register records the original artifact for a job.
func (r *Registry) Register(jobID string, original storage.Artifact) {
	r.entries.Set(jobID, original, cache.DefaultExpiration)
}

// Lookup returns the original artifact for jobID.
func (r *Registry) Lookup(jobID string) (storage.Artifact, error) {
	v, ok := r.entries.Get(jobID)
	if !ok {
		return storage.Artifact{}, fmt.Errorf("jobs: unknown job %q: %w", jobID, domain.ErrNotFound)
	}
	return v.(storage.Artifact), nil
}
