package postgresengine

import (
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/graphstore"
)

const (
	dialectPostgres = "postgres"
	colID           = "id"
	colLabel        = "label"
	colProperties   = "properties"
	colFromID       = "from_id"
	colToID         = "to_id"
	castJsonb       = "?::jsonb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// queryBuilder renders the engine's SQL statements with goqu for a pair of table names.
type queryBuilder struct {
	dialect     goqu.DialectWrapper
	vertexTable string
	edgeTable   string
}

func newQueryBuilder(vertexTable, edgeTable string) queryBuilder {
	return queryBuilder{
		dialect:     goqu.Dialect(dialectPostgres),
		vertexTable: vertexTable,
		edgeTable:   edgeTable,
	}
}

func propertyJSON(key string, value int64) (string, error) {
	raw, err := json.Marshal(map[string]int64{key: value})
	if err != nil {
		return "", fmt.Errorf("encode property: %w", err)
	}

	return string(raw), nil
}

func (b queryBuilder) insertVertex(id uuid.UUID, label graphstore.TypeLabel) (string, error) {
	sqlQuery, _, err := b.dialect.
		Insert(b.vertexTable).
		Rows(goqu.Record{colID: id.String(), colLabel: string(label)}).
		ToSQL()

	return sqlQuery, err
}

func (b queryBuilder) setProperty(id uuid.UUID, key string, value int64) (string, error) {
	props, err := propertyJSON(key, value)
	if err != nil {
		return "", err
	}

	sqlQuery, _, err := b.dialect.
		Update(b.vertexTable).
		Set(goqu.Record{colProperties: goqu.L(colProperties+" || "+castJsonb, props)}).
		Where(goqu.C(colID).Eq(id.String())).
		ToSQL()

	return sqlQuery, err
}

func (b queryBuilder) findByProperty(scope graphstore.TypeLabel, key string, value int64) (string, error) {
	props, err := propertyJSON(key, value)
	if err != nil {
		return "", err
	}

	where := []goqu.Expression{goqu.L(colProperties+" @> "+castJsonb, props)}
	if scope != graphstore.BaseVertexLabel {
		where = append(where, goqu.C(colLabel).Eq(string(scope)))
	}

	sqlQuery, _, err := b.dialect.
		From(b.vertexTable).
		Select(goqu.L(colID+"::text"), goqu.C(colLabel)).
		Where(where...).
		Limit(1).
		ToSQL()

	return sqlQuery, err
}

func (b queryBuilder) deleteVertex(id uuid.UUID) (string, error) {
	sqlQuery, _, err := b.dialect.
		Delete(b.vertexTable).
		Where(goqu.C(colID).Eq(id.String())).
		ToSQL()

	return sqlQuery, err
}

func (b queryBuilder) insertEdge(id uuid.UUID, label graphstore.TypeLabel, from, to uuid.UUID) (string, error) {
	sqlQuery, _, err := b.dialect.
		Insert(b.edgeTable).
		Rows(goqu.Record{
			colID:     id.String(),
			colLabel:  string(label),
			colFromID: from.String(),
			colToID:   to.String(),
		}).
		ToSQL()

	return sqlQuery, err
}

func (b queryBuilder) count(table string) (string, error) {
	sqlQuery, _, err := b.dialect.
		From(table).
		Select(goqu.COUNT(goqu.Star())).
		ToSQL()

	return sqlQuery, err
}

func (b queryBuilder) truncate() (string, error) {
	sqlQuery, _, err := b.dialect.
		Truncate(b.edgeTable, b.vertexTable).
		ToSQL()

	return sqlQuery, err
}

// schema returns the DDL statements that create both tables and their indexes.
func (b queryBuilder) schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	%[2]s uuid PRIMARY KEY,
	%[3]s text NOT NULL,
	%[4]s jsonb NOT NULL DEFAULT '{}'::jsonb
)`, b.vertexTable, colID, colLabel, colProperties),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_gin ON %[1]s USING gin (%[2]s jsonb_path_ops)`,
			b.vertexTable, colProperties),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_%[3]s_unique ON %[1]s ((%[2]s->>'%[3]s'))`,
			b.vertexTable, colProperties, graphstore.LookupPropertyKey),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	%[3]s uuid PRIMARY KEY,
	%[4]s text NOT NULL,
	%[5]s uuid NOT NULL REFERENCES %[2]s (%[3]s) ON DELETE CASCADE,
	%[6]s uuid NOT NULL REFERENCES %[2]s (%[3]s) ON DELETE CASCADE
)`, b.edgeTable, b.vertexTable, colID, colLabel, colFromID, colToID),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_idx ON %[1]s (%[2]s)`, b.edgeTable, colFromID),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_idx ON %[1]s (%[2]s)`, b.edgeTable, colToID),
	}
}
