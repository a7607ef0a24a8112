package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/google/uuid"
	"github.com/llmspell/llmspell/pkg/hook"
	"github.com/llmspell/llmspell/pkg/observability"
)

// PostgresGraph is the bi-temporal KnowledgeGraph backend, grounded on
// original_source/llmspell-storage/src/backends/postgres/graph.rs. It opens
// its database/sql connection through the pgx stdlib driver (not the
// lib/pq-backed pkg/config.DBPool) the way
// codeready-toolchain-tarsy/pkg/database/client.go does, because the
// range/JSONB operators this store leans on (tstzrange(...) @>, properties
// @>) are plain SQL text — what pgx buys here is the single connection
// string driving both golang-migrate's embedded-migration runner and the
// query path, with no lib/pq-vs-pgx split to keep in sync.
type PostgresGraph struct {
	db       *sql.DB
	pipeline *hook.Pipeline
}

// NewPostgresGraph opens dsn via the pgx driver, applies embedded schema
// migrations, and returns a ready KnowledgeGraph. pipeline may be nil.
func NewPostgresGraph(ctx context.Context, dsn string, pipeline *hook.Pipeline) (*PostgresGraph, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("graph: failed to connect: %w", err)
	}

	componentID := hook.ComponentID{Name: "graph.postgres", ComponentType: hook.ComponentSystem}
	if err := runMigrations(db, pipeline, componentID); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresGraph{db: db, pipeline: pipeline}, nil
}

var _ KnowledgeGraph = (*PostgresGraph)(nil)

func (g *PostgresGraph) Close() error { return g.db.Close() }

func tenantOrErr(ctx context.Context) (string, error) {
	tenantID, ok := TenantFromContext(ctx)
	if !ok {
		return "", ErrNoTenantContext
	}
	return tenantID, nil
}

func parseUUID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.UUID{}, ErrInvalidEntityID(id, err)
	}
	return u, nil
}

func rawProperties(properties json.RawMessage) json.RawMessage {
	if len(properties) == 0 {
		return json.RawMessage("{}")
	}
	return properties
}

// AddEntity inserts a new current version. A nil EventTime defaults to now,
// per spec.md §9's resolved Open Question; IngestionTime defaults to now
// too unless the caller explicitly backdated it (tests do this to assert
// bi-temporal ordering).
func (g *PostgresGraph) AddEntity(ctx context.Context, entity Entity) (string, error) {
	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	validStart := time.Now().UTC()
	if entity.EventTime != nil {
		validStart = *entity.EventTime
	}
	txStart := entity.IngestionTime
	if txStart.IsZero() {
		txStart = time.Now().UTC()
	}

	_, err = g.db.ExecContext(ctx,
		`INSERT INTO llmspell.entities
		 (tenant_id, entity_id, entity_type, name, properties, valid_time_start, valid_time_end, transaction_time_start)
		 VALUES ($1, $2, $3, $4, $5, $6, 'infinity', $7)`,
		tenantID, id, entity.EntityType, entity.Name, rawProperties(entity.Properties), validStart, txStart,
	)
	if err != nil {
		return "", fmt.Errorf("graph: failed to insert entity: %w", err)
	}
	return id.String(), nil
}

// UpdateEntity closes the live version and inserts a new one carrying the
// merged properties, transactionally, preserving full history.
func (g *PostgresGraph) UpdateEntity(ctx context.Context, id string, changes map[string]any) error {
	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return err
	}
	entityID, err := parseUUID(id)
	if err != nil {
		return err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("graph: failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var entityType, name string
	var propsRaw json.RawMessage
	var validStart time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT entity_type, name, properties, valid_time_start
		 FROM llmspell.entities
		 WHERE entity_id = $1 AND tenant_id = $2
		   AND valid_time_end = 'infinity' AND transaction_time_end = 'infinity'`,
		entityID, tenantID,
	).Scan(&entityType, &name, &propsRaw, &validStart)
	if err == sql.ErrNoRows {
		return ErrEntityNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("graph: failed to load entity: %w", err)
	}

	properties := map[string]any{}
	if len(propsRaw) > 0 {
		if err := json.Unmarshal(propsRaw, &properties); err != nil {
			return fmt.Errorf("graph: failed to decode properties: %w", err)
		}
	}
	for k, v := range changes {
		properties[k] = v
	}
	merged, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("graph: failed to encode properties: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE llmspell.entities SET valid_time_end = $1, transaction_time_end = $1
		 WHERE entity_id = $2 AND tenant_id = $3
		   AND valid_time_end = 'infinity' AND transaction_time_end = 'infinity'`,
		now, entityID, tenantID,
	); err != nil {
		return fmt.Errorf("graph: failed to close current version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO llmspell.entities
		 (tenant_id, entity_id, entity_type, name, properties, valid_time_start, valid_time_end)
		 VALUES ($1, $2, $3, $4, $5, $6, 'infinity')`,
		tenantID, entityID, entityType, name, merged, validStart,
	); err != nil {
		return fmt.Errorf("graph: failed to insert new version: %w", err)
	}

	return tx.Commit()
}

func (g *PostgresGraph) GetEntity(ctx context.Context, id string) (Entity, error) {
	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return Entity{}, err
	}
	entityID, err := parseUUID(id)
	if err != nil {
		return Entity{}, err
	}

	row := g.db.QueryRowContext(ctx,
		`SELECT entity_id, entity_type, name, properties, valid_time_start, transaction_time_start
		 FROM llmspell.entities
		 WHERE entity_id = $1 AND tenant_id = $2
		   AND valid_time_end = 'infinity' AND transaction_time_end = 'infinity'`,
		entityID, tenantID,
	)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return Entity{}, ErrEntityNotFound(id)
	}
	if err != nil {
		return Entity{}, fmt.Errorf("graph: failed to query entity: %w", err)
	}
	return entity, nil
}

// GetEntityAt resolves the version valid at eventTime, as known to the
// store right now (transaction_time = now), matching the original's
// delegation of its two-argument trait method to the three-argument
// point-query with transaction_time defaulted to the current instant. A
// temporal miss returns (nil, nil), not an error.
func (g *PostgresGraph) GetEntityAt(ctx context.Context, id string, eventTime time.Time) (*Entity, error) {
	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return nil, err
	}
	entityID, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	transactionTime := time.Now().UTC()

	row := g.db.QueryRowContext(ctx,
		`SELECT entity_id, entity_type, name, properties, valid_time_start, transaction_time_start
		 FROM llmspell.entities
		 WHERE entity_id = $1 AND tenant_id = $2
		   AND valid_time_start <= $3 AND valid_time_end > $3
		   AND transaction_time_start <= $4 AND transaction_time_end > $4`,
		entityID, tenantID, eventTime, transactionTime,
	)
	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graph: failed to query entity at time: %w", err)
	}
	return &entity, nil
}

func scanEntity(row *sql.Row) (Entity, error) {
	var id uuid.UUID
	var entityType, name string
	var properties json.RawMessage
	var validStart, txStart time.Time
	if err := row.Scan(&id, &entityType, &name, &properties, &validStart, &txStart); err != nil {
		return Entity{}, err
	}
	start := validStart
	return Entity{
		ID:            id.String(),
		Name:          name,
		EntityType:    entityType,
		Properties:    properties,
		EventTime:     &start,
		IngestionTime: txStart,
	}, nil
}

func (g *PostgresGraph) AddRelationship(ctx context.Context, rel Relationship) (string, error) {
	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return "", err
	}
	from, err := parseUUID(rel.FromEntity)
	if err != nil {
		return "", err
	}
	to, err := parseUUID(rel.ToEntity)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	validStart := time.Now().UTC()
	if rel.EventTime != nil {
		validStart = *rel.EventTime
	}
	txStart := rel.IngestionTime
	if txStart.IsZero() {
		txStart = time.Now().UTC()
	}

	_, err = g.db.ExecContext(ctx,
		`INSERT INTO llmspell.relationships
		 (tenant_id, relationship_id, from_entity, to_entity, relationship_type, properties, valid_time_start, valid_time_end, transaction_time_start)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'infinity', $8)`,
		tenantID, id, from, to, rel.RelationshipType, rawProperties(rel.Properties), validStart, txStart,
	)
	if err != nil {
		return "", fmt.Errorf("graph: failed to insert relationship: %w", err)
	}
	return id.String(), nil
}

// GetRelationships returns every live (current-version, currently-valid)
// relationship touching entityID, in either direction.
func (g *PostgresGraph) GetRelationships(ctx context.Context, entityID string) ([]Relationship, error) {
	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID(entityID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	rows, err := g.db.QueryContext(ctx,
		`SELECT relationship_id, from_entity, to_entity, relationship_type, properties,
		        valid_time_start, transaction_time_start
		 FROM llmspell.relationships
		 WHERE (from_entity = $1 OR to_entity = $1) AND tenant_id = $2
		   AND valid_time_start <= $3 AND valid_time_end > $3
		   AND transaction_time_end = 'infinity'`,
		id, tenantID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to query relationships: %w", err)
	}
	defer rows.Close()

	var out []Relationship
	for rows.Next() {
		var relID, from, to uuid.UUID
		var relType string
		var properties json.RawMessage
		var validStart, txStart time.Time
		if err := rows.Scan(&relID, &from, &to, &relType, &properties, &validStart, &txStart); err != nil {
			return nil, fmt.Errorf("graph: failed to scan relationship: %w", err)
		}
		start := validStart
		out = append(out, Relationship{
			ID:               relID.String(),
			FromEntity:       from.String(),
			ToEntity:         to.String(),
			RelationshipType: relType,
			Properties:       properties,
			EventTime:        &start,
			IngestionTime:    txStart,
		})
	}
	return out, rows.Err()
}

// QueryTemporal builds a dynamic WHERE clause over valid/transaction time
// bounds and JSONB property containment, mirroring the original's
// parameter-position bookkeeping.
func (g *PostgresGraph) QueryTemporal(ctx context.Context, query TemporalQuery) (entities []Entity, err error) {
	queryStart := time.Now()
	defer func() {
		observability.GetGlobalMetrics().RecordGraphQuery(ctx, "query_temporal", time.Since(queryStart), err)
	}()

	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return nil, err
	}

	sqlText := `SELECT entity_id, entity_type, name, properties, valid_time_start, transaction_time_start
	            FROM llmspell.entities WHERE tenant_id = $1`
	args := []any{tenantID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.EntityType != "" {
		sqlText += " AND entity_type = " + arg(query.EntityType)
	}
	if query.EventTimeStart != nil {
		sqlText += " AND valid_time_end > " + arg(*query.EventTimeStart)
	}
	if query.EventTimeEnd != nil {
		sqlText += " AND valid_time_start <= " + arg(*query.EventTimeEnd)
	}
	if query.IngestionTimeStart != nil {
		sqlText += " AND transaction_time_end > " + arg(*query.IngestionTimeStart)
	}
	if query.IngestionTimeEnd != nil {
		sqlText += " AND transaction_time_start <= " + arg(*query.IngestionTimeEnd)
	}
	for key, val := range query.PropertyFilters {
		match, err := json.Marshal(map[string]any{key: val})
		if err != nil {
			return nil, fmt.Errorf("graph: failed to encode property filter %q: %w", key, err)
		}
		sqlText += " AND properties @> " + arg(string(match))
	}
	if query.Limit > 0 {
		sqlText += " LIMIT " + arg(query.Limit)
	}

	rows, err := g.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to execute temporal query: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var id uuid.UUID
		var entityType, name string
		var properties json.RawMessage
		var validStart, txStart time.Time
		if err := rows.Scan(&id, &entityType, &name, &properties, &validStart, &txStart); err != nil {
			return nil, fmt.Errorf("graph: failed to scan entity: %w", err)
		}
		start := validStart
		out = append(out, Entity{ID: id.String(), EntityType: entityType, Name: name, Properties: properties, EventTime: &start, IngestionTime: txStart})
	}
	return out, rows.Err()
}

// GetRelated is Traverse with relationshipType/atTime narrowed to a
// concrete required type and point in time, matching the original's
// dedicated get_related entry point.
func (g *PostgresGraph) GetRelated(ctx context.Context, entityID string, relationshipType string, maxDepth int, validTime time.Time) ([]Related, error) {
	return g.Traverse(ctx, entityID, relationshipType, maxDepth, &validTime)
}

// Traverse runs the recursive CTE from original_source's traverse(): depth 0
// is the starting entity itself, ARRAY[] tracks the path for
// NOT (x = ANY(path)) cycle prevention, and max_depth is clamped to 10.
func (g *PostgresGraph) Traverse(ctx context.Context, startEntity string, relationshipType string, maxDepth int, atTime *time.Time) (related []Related, err error) {
	traverseStart := time.Now()
	defer func() {
		observability.GetGlobalMetrics().RecordGraphQuery(ctx, "traverse", time.Since(traverseStart), err)
	}()

	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return nil, err
	}
	startID, err := parseUUID(startEntity)
	if err != nil {
		return nil, err
	}
	queryTime := time.Now().UTC()
	if atTime != nil {
		queryTime = *atTime
	}
	depth := clampDepth(maxDepth)

	relFilter := ""
	args := []any{startID, tenantID, queryTime, depth}
	if relationshipType != "" {
		args = append(args, relationshipType)
		relFilter = fmt.Sprintf("AND r.relationship_type = $%d", len(args))
	}

	sqlText := fmt.Sprintf(`
		WITH RECURSIVE graph_traversal AS (
			SELECT e.entity_id, e.entity_type, e.name, e.properties,
			       e.valid_time_start, e.transaction_time_start,
			       0 AS depth, ARRAY[e.entity_id] AS path
			FROM llmspell.entities e
			WHERE e.entity_id = $1 AND e.tenant_id = $2
			  AND tstzrange(e.valid_time_start, e.valid_time_end) @> $3::timestamptz
			  AND tstzrange(e.transaction_time_start, e.transaction_time_end) @> now()

			UNION ALL

			SELECT e.entity_id, e.entity_type, e.name, e.properties,
			       e.valid_time_start, e.transaction_time_start,
			       gt.depth + 1, gt.path || e.entity_id
			FROM graph_traversal gt
			JOIN llmspell.relationships r ON gt.entity_id = r.from_entity
			JOIN llmspell.entities e ON r.to_entity = e.entity_id
			WHERE gt.depth < $4 AND r.tenant_id = $2
			  AND tstzrange(r.valid_time_start, r.valid_time_end) @> $3::timestamptz
			  AND tstzrange(r.transaction_time_start, r.transaction_time_end) @> now()
			  AND tstzrange(e.valid_time_start, e.valid_time_end) @> $3::timestamptz
			  AND tstzrange(e.transaction_time_start, e.transaction_time_end) @> now()
			  %s
			  AND NOT (e.entity_id = ANY(gt.path))
		)
		SELECT entity_id, entity_type, name, properties, valid_time_start, transaction_time_start, depth,
		       array_to_json(path)::text AS path_json
		FROM graph_traversal
		WHERE depth > 0
		ORDER BY depth, entity_id`, relFilter)

	rows, err := g.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to execute traversal: %w", err)
	}
	defer rows.Close()

	var out []Related
	for rows.Next() {
		var id uuid.UUID
		var entityType, name string
		var properties json.RawMessage
		var validStart, txStart time.Time
		var depth int
		var pathJSON string
		if err := rows.Scan(&id, &entityType, &name, &properties, &validStart, &txStart, &depth, &pathJSON); err != nil {
			return nil, fmt.Errorf("graph: failed to scan traversal row: %w", err)
		}
		var path []string
		if err := json.Unmarshal([]byte(pathJSON), &path); err != nil {
			return nil, fmt.Errorf("graph: failed to decode traversal path: %w", err)
		}
		start := validStart
		out = append(out, Related{
			Entity: Entity{ID: id.String(), EntityType: entityType, Name: name, Properties: properties, EventTime: &start, IngestionTime: txStart},
			Depth:  depth,
			Path:   path,
		})
	}
	return out, rows.Err()
}

// DeleteBefore removes superseded (non-live) versions ingested before
// cutoff; a row with transaction_time_end = 'infinity' is still live and is
// never touched, so current state is never lost to retention.
func (g *PostgresGraph) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tenantID, err := tenantOrErr(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("graph: failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	relResult, err := tx.ExecContext(ctx,
		`DELETE FROM llmspell.relationships
		 WHERE tenant_id = $1 AND transaction_time_start < $2 AND transaction_time_end != 'infinity'`,
		tenantID, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("graph: failed to delete relationships: %w", err)
	}
	entResult, err := tx.ExecContext(ctx,
		`DELETE FROM llmspell.entities
		 WHERE tenant_id = $1 AND transaction_time_start < $2 AND transaction_time_end != 'infinity'`,
		tenantID, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("graph: failed to delete entities: %w", err)
	}

	relCount, _ := relResult.RowsAffected()
	entCount, _ := entResult.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("graph: failed to commit retention delete: %w", err)
	}
	return relCount + entCount, nil
}
