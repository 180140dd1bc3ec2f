package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/model"
)

// DefaultSQLitePath is used when no DSN is configured
const DefaultSQLitePath = "state/eval.sqlite"

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			EvaluationId INTEGER PRIMARY KEY AUTOINCREMENT,
			AICommentId TEXT NOT NULL,
			AlertId TEXT NOT NULL,
			UserId TEXT,
			Grade INTEGER NOT NULL CHECK (Grade >= 1 AND Grade <= 7),
			Notes TEXT,
			CreatedAt TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_comment ON evaluations(AICommentId)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_alert ON evaluations(AlertId)`,
		`CREATE INDEX IF NOT EXISTS idx_eval_created ON evaluations(CreatedAt)`,
	},
	tableExists: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'evaluations'`,
	insert: func(ctx context.Context, tx *sql.Tx, e model.Evaluation) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO evaluations (
				AICommentId, AlertId, UserId, Grade, Notes, CreatedAt
			) VALUES (?, ?, ?, ?, ?, ?)`,
			e.AICommentID,
			e.AlertID,
			nullString(e.UserID),
			e.Grade,
			nullString(e.Notes),
			e.CreatedAt,
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	},
}

// NewSQLiteStore opens the SQLite evaluation store at dbPath, creating its
// parent directory. Init must be called before use.
func NewSQLiteStore(logger *zap.Logger, dbPath string) (*SQLStore, error) {
	if dbPath == "" {
		dbPath = DefaultSQLitePath
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	return &SQLStore{
		logger:  logger.Named("sqlite-store"),
		db:      db,
		dialect: sqliteDialect,
		path:    dbPath,
		exists: func() bool {
			_, err := os.Stat(dbPath)
			return err == nil
		},
		now: time.Now,
	}, nil
}
