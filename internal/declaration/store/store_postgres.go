package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"verdant/internal/declaration/models"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/sentinel"
	txcontext "verdant/pkg/platform/tx"
)

// Schema is the DDL for the declarations table.
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

const declarationColumns = `id, draft_id, type, source_type, status, risk_level, linked_source_ids,
	items, source_summaries, product_summary, party_id, party_kind, documents, geo_file, outcome,
	po_number, so_number, shipment_number, comments, valid_from, valid_to, filing_eligible,
	created_at, updated_at`

// PostgresStore persists declarations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed declaration store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate declarations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, d *models.Declaration) (id.DeclarationID, error) {
	if d == nil {
		return id.DeclarationID{}, fmt.Errorf("declaration is required")
	}
	declarationID := d.ID
	if declarationID.IsNil() {
		declarationID = id.NewDeclarationID()
	}

	items, err := json.Marshal(nonNil(d.Items))
	if err != nil {
		return id.DeclarationID{}, fmt.Errorf("marshal items: %w", err)
	}
	summaries, err := json.Marshal(nonNil(d.SourceSummaries))
	if err != nil {
		return id.DeclarationID{}, fmt.Errorf("marshal source summaries: %w", err)
	}

	query := `INSERT INTO declarations (` + declarationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		declarationID.String(),
		d.DraftID.String(),
		string(d.Type),
		string(d.SourceType),
		string(d.Status),
		string(d.RiskLevel),
		pq.Array(idStrings(d.LinkedSourceIDs)),
		items,
		summaries,
		d.ProductSummary,
		d.PartyID.String(),
		string(d.PartyKind),
		pq.Array(fileStrings(d.Documents)),
		nullFile(d.GeoFile),
		nullOutcome(d.Outcome),
		d.References.PONumber,
		d.References.SONumber,
		d.References.ShipmentNumber,
		d.Comments,
		d.ValidFrom,
		d.ValidTo,
		d.FilingEligible,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return id.DeclarationID{}, fmt.Errorf("create declaration: %w", sentinel.ErrConflict)
		}
		return id.DeclarationID{}, fmt.Errorf("create declaration: %w", err)
	}
	return declarationID, nil
}

// Update applies a patch. Status changes are optimistic: the row is only
// written while it still holds the status the transition was checked against.
func (s *PostgresStore) Update(ctx context.Context, declarationID id.DeclarationID, patch models.Patch) error {
	comments := sql.NullString{}
	if patch.Comments != nil {
		comments = sql.NullString{String: *patch.Comments, Valid: true}
	}
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	if patch.Status == nil {
		res, err := s.execer(ctx).ExecContext(ctx,
			`UPDATE declarations SET comments = COALESCE($2, comments), updated_at = $3 WHERE id = $1`,
			declarationID.String(), comments, updatedAt)
		if err != nil {
			return fmt.Errorf("update declaration: %w", err)
		}
		return expectOneRow(res, declarationID, sentinel.ErrNotFound)
	}

	var current string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT status FROM declarations WHERE id = $1`, declarationID.String()).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("declaration %s: %w", declarationID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("read declaration status: %w", err)
	}
	next := *patch.Status
	if !models.Status(current).CanTransitionTo(next) {
		return fmt.Errorf("declaration %s: %s to %s: %w", declarationID, current, next, sentinel.ErrInvalidState)
	}

	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE declarations
		SET status = $2,
			filing_eligible = filing_eligible AND $2 = 'approved',
			comments = COALESCE($3, comments),
			updated_at = $4
		WHERE id = $1 AND status = $5`,
		declarationID.String(), string(next), comments, updatedAt, current)
	if err != nil {
		return fmt.Errorf("update declaration status: %w", err)
	}
	return expectOneRow(res, declarationID, sentinel.ErrConflict)
}

// ListByIDs returns the records that exist, in the order of ids.
func (s *PostgresStore) ListByIDs(ctx context.Context, ids []id.DeclarationID) ([]*models.Declaration, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+declarationColumns+` FROM declarations WHERE id = ANY($1::uuid[])`,
		pq.Array(idStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("list declarations by id: %w", err)
	}
	found, err := scanAll(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[id.DeclarationID]*models.Declaration, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}
	out := make([]*models.Declaration, 0, len(found))
	for _, did := range ids {
		if d, ok := byID[did]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, declarationID id.DeclarationID) (*models.Declaration, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+declarationColumns+` FROM declarations WHERE id = $1`, declarationID.String())
	d, err := scanDeclaration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("declaration %s: %w", declarationID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find declaration: %w", err)
	}
	return d, nil
}

// List returns matching declarations newest first.
func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Declaration, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `SELECT ` + declarationColumns + ` FROM declarations`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list declarations: %w", err)
	}
	return scanAll(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAll(rows *sql.Rows) ([]*models.Declaration, error) {
	defer rows.Close()
	var out []*models.Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate declarations: %w", err)
	}
	return out, nil
}

func scanDeclaration(row rowScanner) (*models.Declaration, error) {
	var (
		declarationID, draftID, partyID string
		typ, sourceType, status, risk   string
		partyKind                       string
		linked, documents               []string
		items, summaries                []byte
		geoFile, outcome                sql.NullString
		d                               models.Declaration
	)
	err := row.Scan(
		&declarationID, &draftID, &typ, &sourceType, &status, &risk, pq.Array(&linked),
		&items, &summaries, &d.ProductSummary, &partyID, &partyKind, pq.Array(&documents), &geoFile, &outcome,
		&d.References.PONumber, &d.References.SONumber, &d.References.ShipmentNumber, &d.Comments,
		&d.ValidFrom, &d.ValidTo, &d.FilingEligible, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.ID, err = id.ParseDeclarationID(declarationID); err != nil {
		return nil, fmt.Errorf("stored declaration id: %w", err)
	}
	if d.DraftID, err = id.ParseDraftID(draftID); err != nil {
		return nil, fmt.Errorf("stored draft id: %w", err)
	}
	if d.PartyID, err = id.ParsePartyID(partyID); err != nil {
		return nil, fmt.Errorf("stored party id: %w", err)
	}
	for _, raw := range linked {
		sid, err := id.ParseDeclarationID(raw)
		if err != nil {
			return nil, fmt.Errorf("stored linked source id: %w", err)
		}
		d.LinkedSourceIDs = append(d.LinkedSourceIDs, sid)
	}
	if err := json.Unmarshal(items, &d.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(summaries, &d.SourceSummaries); err != nil {
		return nil, fmt.Errorf("decode source summaries: %w", err)
	}
	if len(d.SourceSummaries) == 0 {
		d.SourceSummaries = nil
	}

	d.Type = models.Direction(typ)
	d.SourceType = models.SourceType(sourceType)
	d.Status = models.Status(status)
	d.RiskLevel = models.RiskLevel(risk)
	d.PartyKind = models.PartyKind(partyKind)
	for _, doc := range documents {
		d.Documents = append(d.Documents, models.FileRef(doc))
	}
	if geoFile.Valid {
		ref := models.FileRef(geoFile.String)
		d.GeoFile = &ref
	}
	if outcome.Valid {
		o := models.Outcome(outcome.String)
		d.Outcome = &o
	}
	return &d, nil
}

func expectOneRow(res sql.Result, declarationID id.DeclarationID, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("declaration %s: %w", declarationID, missing)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func idStrings(ids []id.DeclarationID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

func fileStrings(refs []models.FileRef) []string {
	out := make([]string, len(refs))
	for i, v := range refs {
		out[i] = string(v)
	}
	return out
}

func nullFile(ref *models.FileRef) sql.NullString {
	if ref == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*ref), Valid: true}
}

func nullOutcome(o *models.Outcome) sql.NullString {
	if o == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*o), Valid: true}
}
