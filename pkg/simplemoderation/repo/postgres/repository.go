// Package postgres implements simplemoderation.Repository on PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE contents (
//	    id UUID PRIMARY KEY,
//	    text TEXT NOT NULL,
//	    language TEXT NOT NULL,
//	    source TEXT NOT NULL DEFAULT 'web',
//	    user_id UUID,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE moderation_results (
//	    id UUID PRIMARY KEY,
//	    content_id UUID NOT NULL UNIQUE REFERENCES contents(id),
//	    status TEXT NOT NULL,
//	    categories TEXT[] NOT NULL DEFAULT '{}',
//	    confidence INT NOT NULL DEFAULT 0,
//	    language_detected TEXT,
//	    moderated_by TEXT,
//	    notes TEXT,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE users (
//	    id UUID PRIMARY KEY,
//	    username TEXT NOT NULL UNIQUE,
//	    password TEXT NOT NULL,
//	    email TEXT,
//	    full_name TEXT,
//	    role TEXT NOT NULL DEFAULT 'user',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//
// The UNIQUE constraint on moderation_results.content_id makes the
// one-result-per-content invariant structural; SaveModeration upserts with
// ON CONFLICT so concurrent classification attempts cannot create duplicates.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-moderation/pkg/simplemoderation"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplemoderation.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) simplemoderation.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) simplemoderation.Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "username") {
				return fmt.Errorf("username already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, content *simplemoderation.Content) error {
	query := `
		INSERT INTO contents (id, text, language, source, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		content.ID, content.Text, content.Language, content.Source,
		content.UserID, content.CreatedAt, content.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create content", err)
	}

	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*simplemoderation.Content, error) {
	query := `
		SELECT id, text, language, source, user_id, created_at, updated_at
		FROM contents WHERE id = $1`

	var content simplemoderation.Content
	err := r.db.QueryRow(ctx, query, id).Scan(
		&content.ID, &content.Text, &content.Language, &content.Source,
		&content.UserID, &content.CreatedAt, &content.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplemoderation.ErrContentNotFound
		}
		return nil, r.handlePostgresError("get content", err)
	}

	return &content, nil
}

func (r *Repository) UpdateContent(ctx context.Context, content *simplemoderation.Content) error {
	query := `
		UPDATE contents SET
			text = $2, language = $3, source = $4, user_id = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		content.ID, content.Text, content.Language, content.Source,
		content.UserID, content.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update content", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemoderation.ErrContentNotFound
	}
	return nil
}

// DeleteContent removes a content row, cascading to its moderation result
// first (children before parent).
func (r *Repository) DeleteContent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM moderation_results WHERE content_id = $1`, id); err != nil {
		return r.handlePostgresError("delete moderation results", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM contents WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete content", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemoderation.ErrContentNotFound
	}
	return nil
}

func (r *Repository) ListContent(ctx context.Context, filter simplemoderation.ContentFilter) ([]*simplemoderation.Content, error) {
	query := `
		SELECT id, text, language, source, user_id, created_at, updated_at
		FROM contents WHERE 1=1`
	var args []interface{}

	if filter.Language != nil {
		args = append(args, *filter.Language)
		query += fmt.Sprintf(" AND language = $%d", len(args))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	defer rows.Close()

	var result []*simplemoderation.Content
	for rows.Next() {
		var content simplemoderation.Content
		if err := rows.Scan(
			&content.ID, &content.Text, &content.Language, &content.Source,
			&content.UserID, &content.CreatedAt, &content.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("scan content", err)
		}
		result = append(result, &content)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list content", err)
	}

	return result, nil
}

// Moderation operations

func (r *Repository) GetModerationByContentID(ctx context.Context, contentID uuid.UUID) (*simplemoderation.ModerationResult, error) {
	query := `
		SELECT id, content_id, status, categories, confidence, language_detected,
		       moderated_by, notes, created_at, updated_at
		FROM moderation_results WHERE content_id = $1`

	var result simplemoderation.ModerationResult
	var languageDetected, moderatedBy, notes *string
	err := r.db.QueryRow(ctx, query, contentID).Scan(
		&result.ID, &result.ContentID, &result.Status, &result.Categories,
		&result.Confidence, &languageDetected, &moderatedBy, &notes,
		&result.CreatedAt, &result.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplemoderation.ErrModerationNotFound
		}
		return nil, r.handlePostgresError("get moderation result", err)
	}

	if languageDetected != nil {
		result.LanguageDetected = *languageDetected
	}
	if moderatedBy != nil {
		result.ModeratedBy = *moderatedBy
	}
	if notes != nil {
		result.Notes = *notes
	}

	return &result, nil
}

// SaveModeration upserts the result keyed by content id. The insert id and
// created_at win on first write and are preserved by the conflict branch.
func (r *Repository) SaveModeration(ctx context.Context, result *simplemoderation.ModerationResult) error {
	query := `
		INSERT INTO moderation_results (
			id, content_id, status, categories, confidence, language_detected,
			moderated_by, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (content_id) DO UPDATE SET
			status = EXCLUDED.status,
			categories = EXCLUDED.categories,
			confidence = EXCLUDED.confidence,
			language_detected = EXCLUDED.language_detected,
			moderated_by = EXCLUDED.moderated_by,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		result.ID, result.ContentID, result.Status, result.Categories,
		result.Confidence, nullable(result.LanguageDetected), nullable(result.ModeratedBy),
		nullable(result.Notes), result.CreatedAt, result.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("save moderation result", err)
	}

	return nil
}

func (r *Repository) DeleteModerationByContentID(ctx context.Context, contentID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM moderation_results WHERE content_id = $1`, contentID)
	if err != nil {
		return r.handlePostgresError("delete moderation result", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemoderation.ErrModerationNotFound
	}
	return nil
}

func (r *Repository) ListModerationResults(ctx context.Context) ([]*simplemoderation.ModerationResult, error) {
	query := `
		SELECT id, content_id, status, categories, confidence, language_detected,
		       moderated_by, notes, created_at, updated_at
		FROM moderation_results ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list moderation results", err)
	}
	defer rows.Close()

	var results []*simplemoderation.ModerationResult
	for rows.Next() {
		var result simplemoderation.ModerationResult
		var languageDetected, moderatedBy, notes *string
		if err := rows.Scan(
			&result.ID, &result.ContentID, &result.Status, &result.Categories,
			&result.Confidence, &languageDetected, &moderatedBy, &notes,
			&result.CreatedAt, &result.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("scan moderation result", err)
		}
		if languageDetected != nil {
			result.LanguageDetected = *languageDetected
		}
		if moderatedBy != nil {
			result.ModeratedBy = *moderatedBy
		}
		if notes != nil {
			result.Notes = *notes
		}
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list moderation results", err)
	}

	return results, nil
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *simplemoderation.User) error {
	query := `
		INSERT INTO users (id, username, password, email, full_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.Password, nullable(user.Email),
		nullable(user.FullName), user.Role, user.CreatedAt)

	if err != nil {
		return r.handlePostgresError("create user", err)
	}

	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*simplemoderation.User, error) {
	query := `
		SELECT id, username, password, email, full_name, role, created_at
		FROM users WHERE id = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*simplemoderation.User, error) {
	query := `
		SELECT id, username, password, email, full_name, role, created_at
		FROM users WHERE username = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *Repository) scanUser(row pgx.Row) (*simplemoderation.User, error) {
	var user simplemoderation.User
	var email, fullName *string
	err := row.Scan(&user.ID, &user.Username, &user.Password, &email, &fullName, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplemoderation.ErrUserNotFound
		}
		return nil, r.handlePostgresError("get user", err)
	}
	if email != nil {
		user.Email = *email
	}
	if fullName != nil {
		user.FullName = *fullName
	}
	return &user, nil
}

// nullable maps empty strings to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
