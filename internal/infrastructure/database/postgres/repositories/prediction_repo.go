package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/database/postgres"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

const pgUniqueViolation = "23505"

type postgresPredictionRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewPredictionRepository stores recipes in the predictions table. The full
// recipe is kept as JSONB; the filterable fields are copied into columns.
func NewPredictionRepository(conn *postgres.Connection, log logging.Logger) synthesis.PredictionRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresPredictionRepo{conn: conn, log: log.Named("prediction_repo")}
}

func (r *postgresPredictionRepo) executor() queryExecutor {
	return r.conn.DB()
}

func (r *postgresPredictionRepo) Save(ctx context.Context, rec *synthesis.Recipe) error {
	if rec == nil || rec.ID == "" {
		return errors.NewInvalidInputError("recipe id is required")
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		return errors.NewInvalidInputError("recipe id is not a UUID").WithDetail("id=" + rec.ID)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode recipe")
	}

	query := `
		INSERT INTO predictions (
			id, fingerprint, branch, metal, ligand, solvent, model_version,
			regeneration, recipe, started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`
	_, err = r.executor().ExecContext(ctx, query,
		rec.ID, rec.Fingerprint, rec.Branch.String(), rec.Metal, rec.Ligand, rec.Solvent, rec.ModelVersion,
		rec.Treg != nil, body, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errors.New(errors.ErrCodeConflict, "prediction already stored").WithDetail("id=" + rec.ID)
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save prediction")
	}
	r.log.Debug("prediction saved", logging.RunID(rec.ID))
	return nil
}

func (r *postgresPredictionRepo) FindByID(ctx context.Context, id string) (*synthesis.Recipe, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}
	row := r.executor().QueryRowContext(ctx, `SELECT recipe FROM predictions WHERE id = $1`, id)
	rec, err := scanRecipe(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *postgresPredictionRepo) List(ctx context.Context, q synthesis.HistoryQuery) ([]*synthesis.Recipe, int64, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.Metal != "" {
		add("metal = $%d", q.Metal)
	}
	if q.Ligand != "" {
		add("ligand = $%d", q.Ligand)
	}
	if !q.Since.IsZero() {
		add("completed_at >= $%d", q.Since)
	}

	baseQuery := `FROM predictions`
	if len(where) > 0 {
		baseQuery += ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count predictions")
	}

	limit, offset := clampPage(q.Limit, q.Offset)
	dataQuery := fmt.Sprintf("SELECT recipe %s ORDER BY completed_at DESC, id LIMIT $%d OFFSET $%d",
		baseQuery, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.executor().QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list predictions")
	}
	defer rows.Close()

	var out []*synthesis.Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate predictions")
	}
	return out, total, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanRecipe(s scanner) (*synthesis.Recipe, error) {
	var body []byte
	if err := s.Scan(&body); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan prediction")
	}
	var rec synthesis.Recipe
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode stored recipe")
	}
	return &rec, nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodePredictionNotFound, "prediction not found").WithDetail("id=" + id)
}
