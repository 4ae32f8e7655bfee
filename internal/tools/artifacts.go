package tools

import (
	"sync"
	"time"
)

// Artifact is one shared output keyed by path.
type Artifact struct {
	// Path is the logical location of the artifact.
	Path string `json:"path"`
	// Content is the artifact body.
	Content string `json:"content"`
	// AgentID is the last writer.
	AgentID string `json:"agent_id"`
	// UpdatedAt is when the last write happened.
	UpdatedAt time.Time `json:"updated_at"`
}

// ArtifactMap is the shared artifact store for one task. Writes are
// last-writer-wins per path; sub-agent results are folded in via Merge.
type ArtifactMap struct {
	mu    sync.RWMutex
	items map[string]Artifact
}

// NewArtifactMap creates an empty artifact map.
func NewArtifactMap() *ArtifactMap {
	return &ArtifactMap{items: make(map[string]Artifact)}
}

// Put records an artifact, replacing any previous writer's version.
func (m *ArtifactMap) Put(path, content, agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[path] = Artifact{
		Path:      path,
		Content:   content,
		AgentID:   agentID,
		UpdatedAt: time.Now().UTC(),
	}
}

// Get returns the artifact at path.
func (m *ArtifactMap) Get(path string) (Artifact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[path]
	return a, ok
}

// Merge folds another map's artifacts into this one, last writer wins by
// path using the artifact timestamps.
func (m *ArtifactMap) Merge(other *ArtifactMap) {
	if other == nil {
		return
	}
	for _, a := range other.Snapshot() {
		m.mu.Lock()
		existing, ok := m.items[a.Path]
		if !ok || !a.UpdatedAt.Before(existing.UpdatedAt) {
			m.items[a.Path] = a
		}
		m.mu.Unlock()
	}
}

// Snapshot returns a copy of all artifacts.
func (m *ArtifactMap) Snapshot() []Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Artifact, 0, len(m.items))
	for _, a := range m.items {
		out = append(out, a)
	}
	return out
}

// Len returns the number of stored artifacts.
func (m *ArtifactMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
