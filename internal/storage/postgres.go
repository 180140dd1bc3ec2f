package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/model"
)

var postgresDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			EvaluationId BIGSERIAL PRIMARY KEY,
			AICommentId TEXT NOT NULL,
			AlertId TEXT NOT NULL,
			UserId TEXT,
			Grade INTEGER NOT NULL CHECK (Grade >= 1 AND Grade <= 7),
			Notes TEXT,
			CreatedAt TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_comment ON evaluations(AICommentId)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_alert ON evaluations(AlertId)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_created ON evaluations(CreatedAt)`,
	},
	tableExists: `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = 'evaluations'`,
	numbered: true,
	insert: func(ctx context.Context, tx *sql.Tx, e model.Evaluation) (int64, error) {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO evaluations (
				AICommentId, AlertId, UserId, Grade, Notes, CreatedAt
			) VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING EvaluationId`,
			e.AICommentID,
			e.AlertID,
			nullString(e.UserID),
			e.Grade,
			nullString(e.Notes),
			e.CreatedAt,
		).Scan(&id)
		return id, err
	},
}

// NewPostgresStore opens the Postgres evaluation store through pgx
func NewPostgresStore(logger *zap.Logger, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLStore{
		logger:  logger.Named("postgres-store"),
		db:      db,
		dialect: postgresDialect,
		path:    redactDSN(dsn),
		exists: func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.PingContext(ctx) == nil
		},
		now: time.Now,
	}, nil
}

// redactDSN hides the password of URL-style DSNs
func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return "postgres"
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "postgres"
	}
	return u.Redacted()
}
