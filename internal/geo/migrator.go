package geo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/orbitlabs/provision/internal/model"
)

// createDimensionSQL creates the shared geolocation dimension table. Location
// values are normalized to empty strings so the uniqueness constraint holds
// for partially specified references.
const createDimensionSQL = `
CREATE TABLE IF NOT EXISTS geolocation (
	id bigserial PRIMARY KEY,
	province text NOT NULL DEFAULT '',
	city text NOT NULL DEFAULT '',
	district text NOT NULL DEFAULT '',
	subdistrict text NOT NULL DEFAULT '',
	UNIQUE (province, city, district, subdistrict)
)`

// Migrator enriches a fact table with geolocation reference data. The whole
// migration runs in a single transaction; a failed run leaves the target
// database untouched.
type Migrator struct {
	log zerolog.Logger
}

// NewMigrator creates a new Migrator.
func NewMigrator(log zerolog.Logger) *Migrator {
	return &Migrator{log: log}
}

// Migrate connects to the target database and links every fact row to a row
// of the geolocation dimension, creating the dimension and the link column
// as needed.
func (m *Migrator) Migrate(ctx context.Context, connURI string, ref model.GeoReference) error {
	conn, err := pgx.Connect(ctx, connURI)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createDimensionSQL); err != nil {
		return fmt.Errorf("create geolocation table: %w", err)
	}

	factTable := pgx.Identifier{ref.FactTable}.Sanitize()
	addColumn := fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN IF NOT EXISTS geolocation_id bigint REFERENCES geolocation(id)",
		factTable)
	if _, err := tx.Exec(ctx, addColumn); err != nil {
		return fmt.Errorf("add geolocation column to %s: %w", ref.FactTable, err)
	}

	insertSQL, insertArgs := insertStatement(ref)
	if _, err := tx.Exec(ctx, insertSQL, insertArgs...); err != nil {
		return fmt.Errorf("populate geolocation table: %w", err)
	}

	backfillSQL, backfillArgs := backfillStatement(ref)
	tag, err := tx.Exec(ctx, backfillSQL, backfillArgs...)
	if err != nil {
		return fmt.Errorf("backfill %s: %w", ref.FactTable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	m.log.Info().
		Str("fact_table", ref.FactTable).
		Int64("rows_linked", tag.RowsAffected()).
		Msg("geolocation migration applied")
	return nil
}

// locationField pairs a dimension column with its source: a fact-table column
// when configured, a static fallback value otherwise.
type locationField struct {
	name   string
	column string
	static string
}

func locationFields(ref model.GeoReference) []locationField {
	return []locationField{
		{"province", ref.ProvinceColumn, ref.Province},
		{"city", ref.CityColumn, ref.City},
		{"district", ref.DistrictColumn, ref.District},
		{"subdistrict", ref.SubdistrictColumn, ref.Subdistrict},
	}
}

// expr renders the SQL expression producing this field's value for a fact row
// aliased as f, appending any parameter to args.
func (f locationField) expr(args *[]any) string {
	if f.column != "" {
		return fmt.Sprintf("coalesce(f.%s::text, '')", pgx.Identifier{f.column}.Sanitize())
	}
	if f.static != "" {
		*args = append(*args, f.static)
		return fmt.Sprintf("$%d", len(*args))
	}
	return "''"
}

// insertStatement builds the INSERT that seeds the geolocation dimension with
// every distinct location present in (or statically assigned to) the fact
// table.
func insertStatement(ref model.GeoReference) (string, []any) {
	var args []any
	exprs := make([]string, 0, 4)
	for _, f := range locationFields(ref) {
		exprs = append(exprs, f.expr(&args))
	}
	sql := fmt.Sprintf(`INSERT INTO geolocation (province, city, district, subdistrict)
SELECT DISTINCT %s FROM %s f
ON CONFLICT (province, city, district, subdistrict) DO NOTHING`,
		strings.Join(exprs, ", "), pgx.Identifier{ref.FactTable}.Sanitize())
	return sql, args
}

// backfillStatement builds the UPDATE that links unlinked fact rows to their
// geolocation dimension row.
func backfillStatement(ref model.GeoReference) (string, []any) {
	var args []any
	conds := make([]string, 0, 4)
	for _, f := range locationFields(ref) {
		conds = append(conds, fmt.Sprintf("g.%s = %s", f.name, f.expr(&args)))
	}
	sql := fmt.Sprintf(`UPDATE %s f SET geolocation_id = g.id
FROM geolocation g
WHERE f.geolocation_id IS NULL AND %s`,
		pgx.Identifier{ref.FactTable}.Sanitize(), strings.Join(conds, " AND "))
	return sql, args
}
