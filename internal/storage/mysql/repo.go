package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"pnm_gardeners/internal/domain"
)

// rows per INSERT statement; keeps placeholder counts well under the server limit
const insertChunk = 200

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Open connects with the DSN options the repo relies on (parseTime, UTC).
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// ReplaceReviews swaps the whole stored set in one transaction, so readers
// see either the old set or the new one.
func (r *Repo) ReplaceReviews(ctx context.Context, rs []domain.Review) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteReviewsSQL); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}
	if err := insertReviews(ctx, tx, rs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) InsertReviews(ctx context.Context, rs []domain.Review) error {
	return insertReviews(ctx, r.db, rs)
}

func insertReviews(ctx context.Context, ex execer, rs []domain.Review) error {
	for start := 0; start < len(rs); start += insertChunk {
		end := min(start+insertChunk, len(rs))
		chunk := rs[start:end]

		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*12) // 12 params per row
		for _, rv := range chunk {
			images := rv.Images
			if images == nil {
				images = []string{}
			}
			imgs, err := json.Marshal(images)
			if err != nil {
				return err
			}
			created := rv.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			values = append(values, insertReviewRow)
			args = append(args,
				rv.ID,
				rv.Name,
				rv.Rating,
				rv.Date,
				rv.Text,
				rv.Service,
				rv.Postcode,
				rv.Lat,
				rv.Lng,
				string(imgs),
				rv.Approved,
				created.UTC(),
			)
		}
		sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
		if _, err := ex.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert reviews [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

func (r *Repo) LogRun(ctx context.Context, run domain.Run) error {
	_, err := r.db.ExecContext(ctx, insertRunSQL, run.Source, run.Segments, run.Skipped, run.Stored)
	return err
}

func (r *Repo) ListReviews(ctx context.Context, limit int) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var (
			rv     domain.Review
			images []byte
		)
		if err := rows.Scan(
			&rv.ID,
			&rv.Name,
			&rv.Rating,
			&rv.Date,
			&rv.Text,
			&rv.Service,
			&rv.Postcode,
			&rv.Lat,
			&rv.Lng,
			&images,
			&rv.Approved,
			&rv.CreatedAt,
		); err != nil {
			return nil, err
		}
		rv.Images = []string{}
		if len(images) > 0 {
			if err := json.Unmarshal(images, &rv.Images); err != nil {
				return nil, fmt.Errorf("decode images for %s: %w", rv.ID, err)
			}
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
