package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/graphfold/graphfold/pkg/types"
	"github.com/graphfold/graphfold/pkg/utils"
)

// vectorIndexName is the shared cosine index over entity embeddings.
const vectorIndexName = "entity_embedding"

// Neo4jStore implements GraphStore against a Neo4j database.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore connects to a Neo4j instance. An empty database selects the
// server default "neo4j".
func NewNeo4jStore(uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Neo4jStore{client: client, database: database, logger: logger}, nil
}

func (n *Neo4jStore) VerifyConnectivity(ctx context.Context) error {
	if err := n.client.VerifyConnectivity(ctx); err != nil {
		return classify("verify connectivity", err)
	}
	return nil
}

func (n *Neo4jStore) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// EnsureSchema creates per-label natural-key constraints, a name index on the
// base entity label, and the vector index when vectorDims > 0. Statements are
// IF NOT EXISTS so repeated calls are safe.
func (n *Neo4jStore) EnsureSchema(ctx context.Context, labels []string, vectorDims int) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	statements := []string{
		fmt.Sprintf("CREATE INDEX entity_name IF NOT EXISTS FOR (n:%s) ON (n.name)", types.EntityLabel),
	}
	for _, label := range labels {
		label = sanitizeLabel(label)
		if label == "" {
			continue
		}
		statements = append(statements, fmt.Sprintf(
			"CREATE CONSTRAINT %s_natural_key IF NOT EXISTS FOR (n:%s) REQUIRE n.natural_key IS UNIQUE",
			strings.ToLower(label), label,
		))
	}
	if vectorDims > 0 {
		statements = append(statements, fmt.Sprintf(
			"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
				"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			vectorIndexName, types.EntityLabel, vectorDims,
		))
	}

	for _, statement := range statements {
		if _, err := session.Run(ctx, statement, nil); err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "An equivalent") {
				continue
			}
			return classify("ensure schema", err)
		}
	}
	return nil
}

// ExecuteRead runs one parameterized read query and returns its rows as key
// to value maps.
func (n *Neo4jStore) ExecuteRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return n.execute(ctx, "execute read", query, params, false)
}

// ExecuteWrite runs one parameterized write query and returns its rows.
func (n *Neo4jStore) ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return n.execute(ctx, "execute write", query, params, true)
}

func (n *Neo4jStore) execute(ctx context.Context, op, query string, params map[string]any, write bool) ([]map[string]any, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	}

	var result any
	var err error
	if write {
		result, err = session.ExecuteWrite(ctx, work)
	} else {
		result, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		return nil, classify(op, err)
	}

	records := result.([]*db.Record)
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (n *Neo4jStore) FindByName(ctx context.Context, label, name string, limit int) ([]*types.GraphNode, error) {
	query := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE toLower(n.name) = toLower($name)
		RETURN n, elementId(n) AS id
		LIMIT $limit
	`, scopeLabel(label))
	return n.queryNodes(ctx, "find by name", query, map[string]any{
		"name":  name,
		"limit": queryLimit(limit),
	})
}

func (n *Neo4jStore) FindByNameContains(ctx context.Context, label, fragment string, limit int) ([]*types.GraphNode, error) {
	query := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE toLower(n.name) CONTAINS toLower($fragment)
		RETURN n, elementId(n) AS id
		LIMIT $limit
	`, scopeLabel(label))
	return n.queryNodes(ctx, "find by name fragment", query, map[string]any{
		"fragment": fragment,
		"limit":    queryLimit(limit),
	})
}

func (n *Neo4jStore) FindByProperty(ctx context.Context, label, key, value string, limit int) ([]*types.GraphNode, error) {
	query := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE n[$key] IS NOT NULL AND toLower(toString(n[$key])) = toLower($value)
		RETURN n, elementId(n) AS id
		LIMIT $limit
	`, scopeLabel(label))
	return n.queryNodes(ctx, "find by property", query, map[string]any{
		"key":   key,
		"value": value,
		"limit": queryLimit(limit),
	})
}

func (n *Neo4jStore) FindByNaturalKey(ctx context.Context, label, naturalKey string) (*types.GraphNode, error) {
	query := fmt.Sprintf(`
		MATCH (n:%s {natural_key: $natural_key})
		RETURN n, elementId(n) AS id
		LIMIT 1
	`, scopeLabel(label))
	nodes, err := n.queryNodes(ctx, "find by natural key", query, map[string]any{
		"natural_key": naturalKey,
	})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// SearchByVector queries the vector index, falling back to an embedding scan
// when the server has no vector index support.
func (n *Neo4jStore) SearchByVector(ctx context.Context, label string, embedding []float32, opts *VectorSearchOptions) ([]VectorHit, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	limit := 10
	minScore := 0.0
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.MinScore > 0 {
			minScore = opts.MinScore
		}
	}

	hits, err := n.vectorIndexSearch(ctx, label, embedding, limit, minScore)
	if err == nil {
		return hits, nil
	}
	if !isVectorIndexUnavailable(err) {
		return nil, classify("vector search", err)
	}
	n.logger.Debug("vector index unavailable, scanning stored embeddings", "error", err)
	return n.vectorScan(ctx, label, embedding, limit, minScore)
}

func (n *Neo4jStore) vectorIndexSearch(ctx context.Context, label string, embedding []float32, limit int, minScore float64) ([]VectorHit, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CALL db.index.vector.queryNodes($index, $limit, $embedding)
			YIELD node, score
			WHERE score >= $min_score AND $label IN labels(node)
			RETURN node, elementId(node) AS id, score
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"index":     vectorIndexName,
			"limit":     limit,
			"embedding": float64Slice(embedding),
			"min_score": minScore,
			"label":     scopeLabel(label),
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	hits := make([]VectorHit, 0, len(records))
	for _, record := range records {
		node, ok := nodeFromRecord(record)
		if !ok {
			continue
		}
		score, _ := record.Get("score")
		if s, ok := score.(float64); ok {
			hits = append(hits, VectorHit{Node: node, Score: s})
		}
	}
	return hits, nil
}

// vectorScan fetches stored embeddings within the label scope and ranks them
// by cosine similarity in process.
func (n *Neo4jStore) vectorScan(ctx context.Context, label string, embedding []float32, limit int, minScore float64) ([]VectorHit, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n)
			WHERE $label IN labels(n) AND n.embedding IS NOT NULL
			RETURN n, elementId(n) AS id
		`
		res, err := tx.Run(ctx, query, map[string]any{"label": scopeLabel(label)})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, classify("vector scan", err)
	}

	records := result.([]*db.Record)
	var scored []utils.ScoredItem[*types.GraphNode]
	for _, record := range records {
		nodeValue, found := record.Get("n")
		if !found {
			continue
		}
		dbNode, ok := nodeValue.(dbtype.Node)
		if !ok {
			continue
		}
		stored := float32Slice(dbNode.Props["embedding"])
		if len(stored) == 0 {
			continue
		}
		score := utils.CosineSimilarity(embedding, stored)
		if score < minScore {
			continue
		}
		node, ok := nodeFromRecord(record)
		if !ok {
			continue
		}
		scored = append(scored, utils.ScoredItem[*types.GraphNode]{Item: node, Score: score})
	}

	top := utils.TopKByScore(scored, limit)
	hits := make([]VectorHit, 0, len(top))
	for _, item := range top {
		hits = append(hits, VectorHit{Node: item.Item, Score: item.Score})
	}
	return hits, nil
}

func (n *Neo4jStore) UpsertNode(ctx context.Context, label, naturalKey string, props types.Properties) (string, error) {
	if naturalKey == "" {
		return "", &Error{Kind: ErrorKindQuery, Op: "upsert node", Err: types.ErrMissingIdentity}
	}
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MERGE (n:%s {natural_key: $natural_key})
			ON CREATE SET n.created_at = $now
			SET n:%s
			SET n += $properties
			SET n.updated_at = $now
			RETURN elementId(n) AS id
		`, scopeLabel(label), types.EntityLabel)
		res, err := tx.Run(ctx, query, map[string]any{
			"natural_key": naturalKey,
			"properties":  storeProperties(props),
			"now":         types.FormatTime(time.Now()),
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		id, _ := record.Get("id")
		return id, nil
	})
	if err != nil {
		return "", classify("upsert node", err)
	}

	id, ok := result.(string)
	if !ok {
		return "", &Error{Kind: ErrorKindQuery, Op: "upsert node", Err: fmt.Errorf("unexpected id type %T", result)}
	}
	return id, nil
}

func (n *Neo4jStore) UpsertRelationship(ctx context.Context, relType, sourceID, targetID string, props types.Properties) error {
	relType = sanitizeRelType(relType)
	if relType == "" {
		return &Error{Kind: ErrorKindQuery, Op: "upsert relationship", Err: types.ErrMissingRelationshipType}
	}
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (a) WHERE elementId(a) = $source_id
			MATCH (b) WHERE elementId(b) = $target_id
			MERGE (a)-[r:%s]->(b)
			ON CREATE SET r.created_at = $now
			SET r += $properties
			SET r.updated_at = $now
			RETURN count(r) AS merged
		`, relType)
		res, err := tx.Run(ctx, query, map[string]any{
			"source_id":  sourceID,
			"target_id":  targetID,
			"properties": storeProperties(props),
			"now":        types.FormatTime(time.Now()),
		})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		merged, _ := record.Get("merged")
		return merged, nil
	})
	if err != nil {
		return classify("upsert relationship", err)
	}

	if merged, ok := result.(int64); ok && merged == 0 {
		return &Error{
			Kind: ErrorKindQuery,
			Op:   "upsert relationship",
			Err:  fmt.Errorf("endpoints %s -> %s not found", sourceID, targetID),
		}
	}
	return nil
}

func (n *Neo4jStore) DeleteChunk(ctx context.Context, size int) (int, error) {
	if size <= 0 {
		size = 1000
	}
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n)
			WITH n LIMIT $size
			DETACH DELETE n
			RETURN count(n) AS deleted
		`
		res, err := tx.Run(ctx, query, map[string]any{"size": size})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		return deleted, nil
	})
	if err != nil {
		return 0, classify("delete chunk", err)
	}

	deleted, _ := result.(int64)
	return int(deleted), nil
}

func (n *Neo4jStore) Stats(ctx context.Context) (*GraphStats, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		stats := &GraphStats{
			NodesByLabel:        make(map[string]int64),
			RelationshipsByType: make(map[string]int64),
			CollectedAt:         time.Now().UTC(),
		}

		labelQuery := fmt.Sprintf(`
			MATCH (n:%s)
			UNWIND labels(n) AS label
			WITH label, count(DISTINCT n) AS node_count
			WHERE label <> $base
			RETURN label, node_count
			ORDER BY label
		`, types.EntityLabel)
		res, err := tx.Run(ctx, labelQuery, map[string]any{"base": types.EntityLabel})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			label, _ := record.Get("label")
			count, _ := record.Get("node_count")
			if name, ok := label.(string); ok {
				stats.NodesByLabel[name], _ = count.(int64)
			}
		}

		totalQuery := fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS total", types.EntityLabel)
		res, err = tx.Run(ctx, totalQuery, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		total, _ := record.Get("total")
		stats.NodeCount, _ = total.(int64)

		relQuery := `
			MATCH ()-[r]->()
			RETURN type(r) AS rel_type, count(r) AS rel_count
			ORDER BY rel_type
		`
		res, err = tx.Run(ctx, relQuery, nil)
		if err != nil {
			return nil, err
		}
		records, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			relType, _ := record.Get("rel_type")
			count, _ := record.Get("rel_count")
			if name, ok := relType.(string); ok {
				c, _ := count.(int64)
				stats.RelationshipsByType[name] = c
				stats.RelationshipCount += c
			}
		}

		return stats, nil
	})
	if err != nil {
		return nil, classify("stats", err)
	}
	return result.(*GraphStats), nil
}

func (n *Neo4jStore) queryNodes(ctx context.Context, op, query string, params map[string]any) ([]*types.GraphNode, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, classify(op, err)
	}

	records := result.([]*db.Record)
	nodes := make([]*types.GraphNode, 0, len(records))
	for _, record := range records {
		if node, ok := nodeFromRecord(record); ok {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// nodeFromRecord converts a record carrying a node and its element id. The
// stored embedding is dropped: candidates compare on properties, not vectors.
func nodeFromRecord(record *db.Record) (*types.GraphNode, bool) {
	nodeValue, found := record.Get("n")
	if !found {
		nodeValue, found = record.Get("node")
		if !found {
			return nil, false
		}
	}
	dbNode, ok := nodeValue.(dbtype.Node)
	if !ok {
		return nil, false
	}
	idValue, _ := record.Get("id")
	id, ok := idValue.(string)
	if !ok {
		return nil, false
	}

	props := make(types.Properties, len(dbNode.Props))
	for k, v := range dbNode.Props {
		if k == "embedding" {
			continue
		}
		props[k] = v
	}
	return &types.GraphNode{InternalID: id, Labels: dbNode.Labels, Properties: props}, true
}

// storeProperties copies props into a bolt-safe parameter map. Embeddings
// become float64 lists; the merge key is managed by the query, not the map.
func storeProperties(props types.Properties) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if vec, ok := v.([]float32); ok {
			out[k] = float64Slice(vec)
			continue
		}
		out[k] = v
	}
	delete(out, "natural_key")
	return out
}

func float64Slice(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func float32Slice(value any) []float32 {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}

// isVectorIndexUnavailable reports whether the error indicates a server
// without the vector index procedure or without the expected index.
func isVectorIndexUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ProcedureNotFound") ||
		strings.Contains(msg, "ProcedureCallFailed") ||
		strings.Contains(msg, "no such vector")
}

// scopeLabel maps the empty label to the base entity label and sanitizes the
// rest for interpolation into a pattern.
func scopeLabel(label string) string {
	cleaned := sanitizeLabel(label)
	if cleaned == "" {
		return types.EntityLabel
	}
	return cleaned
}

// sanitizeLabel keeps letters, digits and underscores so a label is safe to
// interpolate. Labels come from entity type names, which may be user input.
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// sanitizeRelType uppercases and sanitizes a relationship type for
// interpolation, mapping spaces and dashes to underscores.
func sanitizeRelType(relType string) string {
	upper := strings.ToUpper(strings.TrimSpace(relType))
	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
		case r == ' ' || r == '-':
			if b.Len() > 0 {
				b.WriteRune('_')
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
