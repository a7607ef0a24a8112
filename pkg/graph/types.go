// Package graph implements the bi-temporal knowledge graph store from
// spec.md §4.10: entities and relationships tracked along two independent
// time axes (when a fact was true in the world, and when the store learned
// it), tenant-isolated at the query layer, grounded on
// original_source/llmspell-storage/src/backends/postgres/graph.rs.
package graph

import (
	"encoding/json"
	"time"
)

// Entity is a node in the knowledge graph. EventTime is nil when the
// caller didn't supply one; AddEntity then defaults it to the current time,
// per spec.md §9's resolved Open Question.
type Entity struct {
	ID            string
	Name          string
	EntityType    string
	Properties    json.RawMessage
	EventTime     *time.Time
	IngestionTime time.Time
}

// Relationship is a directed edge between two entities, bi-temporally
// tracked the same way Entity is.
type Relationship struct {
	ID               string
	FromEntity       string
	ToEntity         string
	RelationshipType string
	Properties       json.RawMessage
	EventTime        *time.Time
	IngestionTime    time.Time
}

// TemporalQuery filters QueryTemporal's scan across valid-time,
// transaction-time, entity type, and JSONB property containment.
type TemporalQuery struct {
	EntityType         string
	EventTimeStart      *time.Time
	EventTimeEnd        *time.Time
	IngestionTimeStart  *time.Time
	IngestionTimeEnd    *time.Time
	PropertyFilters     map[string]any
	Limit               int
}

// Related is one hop result from GetRelated: the entity found, its depth
// from the traversal origin, and the chain of entity IDs taken to reach it.
type Related struct {
	Entity Entity
	Depth  int
	Path   []string
}
