package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/config"
	"github.com/t77yq/comment-evaluator/internal/model"
)

// Store is the append-only evaluation log
type Store interface {
	// Init creates the evaluations table and its indexes if they don't exist
	Init(ctx context.Context) error

	// Create validates and inserts one evaluation, returning it with its assigned id
	Create(ctx context.Context, in model.EvaluationCreate) (model.Evaluation, error)

	// ByAlert returns the evaluations of an alert, newest first
	ByAlert(ctx context.Context, alertID string) ([]model.Evaluation, error)

	// ByComment returns the evaluations of a comment, newest first
	ByComment(ctx context.Context, commentID string) ([]model.Evaluation, error)

	// IsEvaluated reports whether a comment has been graded, optionally by one user
	IsEvaluated(ctx context.Context, commentID string, userID *string) (bool, error)

	// Stats aggregates row and distinct key counts
	Stats(ctx context.Context) (Stats, error)

	// All returns every evaluation, newest first
	All(ctx context.Context) ([]model.Evaluation, error)

	// Count returns the number of stored evaluations
	Count(ctx context.Context) (int, error)

	// Path describes where the store lives
	Path() string

	// Close releases the database handle
	Close() error
}

// Stats summarizes the evaluation log
type Stats struct {
	Total            int    `json:"total_evaluations"`
	UniqueAlerts     int    `json:"unique_alerts_evaluated"`
	UniqueComments   int    `json:"unique_comments_evaluated"`
	UniqueEvaluators int    `json:"unique_evaluators"`
	Path             string `json:"database_path"`
	Exists           bool   `json:"database_exists"`
}

// NewStore opens the store selected by cfg.Driver
func NewStore(cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	var (
		store *SQLStore
		err   error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite", "sqlite3":
		store, err = NewSQLiteStore(logger, cfg.DSN)
	case "postgres", "postgresql":
		store, err = NewPostgresStore(logger, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// dialect holds what differs between the SQL backends
type dialect struct {
	schema      []string
	tableExists string
	numbered    bool
	insert      func(ctx context.Context, tx *sql.Tx, e model.Evaluation) (int64, error)
}

const selectColumns = "SELECT EvaluationId, AICommentId, AlertId, UserId, Grade, Notes, CreatedAt FROM evaluations"

const newestFirst = " ORDER BY CreatedAt DESC, EvaluationId DESC"

// SQLStore implements Store over database/sql for the sqlite and postgres dialects
type SQLStore struct {
	logger  *zap.Logger
	db      *sql.DB
	dialect dialect
	path    string
	exists  func() bool
	now     func() time.Time
}

// rebind rewrites ? placeholders as $n for numbered dialects
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Init implements Store.Init
func (s *SQLStore) Init(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("initialize evaluation store", err)
	}
	defer tx.Rollback()

	for _, stmt := range s.dialect.schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storageErr("initialize evaluation store", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("initialize evaluation store", err)
	}
	s.logger.Info("Evaluation store initialized", zap.String("path", s.path))
	return nil
}

// Create implements Store.Create
func (s *SQLStore) Create(ctx context.Context, in model.EvaluationCreate) (model.Evaluation, error) {
	e, err := in.ToEvaluation(s.now())
	if err != nil {
		return model.Evaluation{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Evaluation{}, storageErr("create evaluation", err)
	}
	defer tx.Rollback()

	id, err := s.dialect.insert(ctx, tx, e)
	if err != nil {
		return model.Evaluation{}, storageErr("create evaluation", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Evaluation{}, storageErr("create evaluation", err)
	}
	e.EvaluationID = id

	s.logger.Debug("Evaluation created",
		zap.Int64("evaluation_id", e.EvaluationID),
		zap.String("comment_id", e.AICommentID),
		zap.String("alert_id", e.AlertID),
		zap.Int("grade", e.Grade))
	return e, nil
}

// ByAlert implements Store.ByAlert
func (s *SQLStore) ByAlert(ctx context.Context, alertID string) ([]model.Evaluation, error) {
	return s.list(ctx, "list evaluations by alert", selectColumns+" WHERE AlertId = ?"+newestFirst, alertID)
}

// ByComment implements Store.ByComment
func (s *SQLStore) ByComment(ctx context.Context, commentID string) ([]model.Evaluation, error) {
	return s.list(ctx, "list evaluations by comment", selectColumns+" WHERE AICommentId = ?"+newestFirst, commentID)
}

// All implements Store.All
func (s *SQLStore) All(ctx context.Context) ([]model.Evaluation, error) {
	return s.list(ctx, "list evaluations", selectColumns+newestFirst)
}

// IsEvaluated implements Store.IsEvaluated
func (s *SQLStore) IsEvaluated(ctx context.Context, commentID string, userID *string) (bool, error) {
	query := "SELECT COUNT(*) FROM evaluations WHERE AICommentId = ?"
	args := []interface{}{commentID}
	if userID != nil {
		query += " AND UserId = ?"
		args = append(args, *userID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&count); err != nil {
		return false, storageErr("check evaluation", err)
	}
	return count > 0, nil
}

// Count implements Store.Count
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evaluations").Scan(&count); err != nil {
		return 0, storageErr("count evaluations", err)
	}
	return count, nil
}

// Stats implements Store.Stats. A store that does not exist yet is reported
// as not initialized without touching it.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: s.path, Exists: s.exists()}
	if !stats.Exists {
		return stats, storageErr("read evaluation stats", ErrNotInitialized)
	}

	var tables int
	if err := s.db.QueryRowContext(ctx, s.dialect.tableExists).Scan(&tables); err != nil {
		return stats, storageErr("read evaluation stats", err)
	}
	if tables == 0 {
		return stats, storageErr("read evaluation stats", ErrNotInitialized)
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT AlertId), COUNT(DISTINCT AICommentId), COUNT(DISTINCT UserId)
		FROM evaluations`).Scan(
		&stats.Total,
		&stats.UniqueAlerts,
		&stats.UniqueComments,
		&stats.UniqueEvaluators,
	)
	if err != nil {
		return stats, storageErr("read evaluation stats", err)
	}
	return stats, nil
}

// Path implements Store.Path
func (s *SQLStore) Path() string {
	return s.path
}

// Close implements Store.Close
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) list(ctx context.Context, op, query string, args ...interface{}) ([]model.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	evaluations := make([]model.Evaluation, 0)
	for rows.Next() {
		var e model.Evaluation
		var userID, notes sql.NullString
		err := rows.Scan(
			&e.EvaluationID,
			&e.AICommentID,
			&e.AlertID,
			&userID,
			&e.Grade,
			&notes,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, storageErr(op, err)
		}
		if userID.Valid {
			e.UserID = &userID.String
		}
		if notes.Valid {
			e.Notes = &notes.String
		}
		e.CreatedAt = e.CreatedAt.UTC()
		evaluations = append(evaluations, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return evaluations, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
