package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/innunfold/hall-feeds/internal/domain"
	"github.com/lib/pq"
)

// Repository implements domain.PostRepository, domain.HallRepository and
// domain.CursorRepository using PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, and returns a new Repository. The caller should call Close
// when the repository is no longer needed.
func NewRepository(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			hall_id TEXT NOT NULL,
			author_address TEXT NOT NULL,
			author_username TEXT NOT NULL,
			author_influence INTEGER NOT NULL DEFAULT 0,
			content TEXT NOT NULL,
			post_type TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			likes INTEGER NOT NULL DEFAULT 0,
			echoes INTEGER NOT NULL DEFAULT 0,
			comments INTEGER NOT NULL DEFAULT 0,
			quality_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archive_evaluated BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_hall_id ON posts (hall_id)`,
		`CREATE TABLE IF NOT EXISTS halls (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
			minimum_reputation INTEGER NOT NULL DEFAULT 0,
			total_posts INTEGER NOT NULL DEFAULT 0,
			active_members INTEGER NOT NULL DEFAULT 0,
			energy_pool INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS cursors (
			service TEXT PRIMARY KEY,
			cursor_value BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreatePost inserts a new post. Replayed transactions are ignored.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (
			id, hall_id, author_address, author_username, author_influence,
			content, post_type, tags, created_at,
			likes, echoes, comments, quality_score
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		post.ID,
		post.HallID,
		post.Author.Address,
		post.Author.Username,
		post.Author.Influence,
		post.Content,
		string(post.Type),
		pq.Array(post.Tags),
		post.CreatedAt,
		post.Engagement.Likes,
		post.Engagement.Echoes,
		post.Engagement.Comments,
		post.QualityScore,
	)
	return err
}

const postColumns = `
	id, hall_id, author_address, author_username, author_influence,
	content, post_type, tags, created_at,
	likes, echoes, comments, quality_score, archived, archive_evaluated`

// GetPost retrieves a post by ID.
func (r *Repository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return post, nil
}

// UpdateEngagement persists new counters and the stepped quality score.
func (r *Repository) UpdateEngagement(ctx context.Context, id string, e domain.Engagement, qualityScore float64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts
		SET likes = $2, echoes = $3, comments = $4, quality_score = $5
		WHERE id = $1`,
		id, e.Likes, e.Echoes, e.Comments, qualityScore,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListLivePosts returns posts created after since plus all archived posts,
// optionally scoped to one hall.
func (r *Repository) ListLivePosts(ctx context.Context, hallID string, since time.Time) ([]domain.Post, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if hallID != "" {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+postColumns+` FROM posts
			WHERE (created_at > $1 OR archived) AND hall_id = $2
			ORDER BY created_at DESC`,
			since, hallID,
		)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+postColumns+` FROM posts
			WHERE created_at > $1 OR archived
			ORDER BY created_at DESC`,
			since,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query live posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// ListUnevaluated returns posts at or past the archive boundary whose
// admission has not run yet.
func (r *Repository) ListUnevaluated(ctx context.Context, cutoff time.Time) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE created_at <= $1 AND NOT archive_evaluated
		ORDER BY created_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query unevaluated posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// MarkArchived freezes a post in the archive and records that admission ran.
func (r *Repository) MarkArchived(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE posts SET archived = TRUE, archive_evaluated = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeletePost permanently removes a post.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	return err
}

// CreateHall inserts a new hall. Replayed transactions are ignored.
func (r *Repository) CreateHall(ctx context.Context, hall *domain.Hall) error {
	query := `
		INSERT INTO halls (
			id, name, description, icon, created_at,
			is_private, requires_approval, minimum_reputation,
			total_posts, active_members, energy_pool
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		hall.ID,
		hall.Name,
		hall.Description,
		hall.Icon,
		hall.CreatedAt,
		hall.Settings.IsPrivate,
		hall.Settings.RequiresApproval,
		hall.Settings.MinimumReputation,
		hall.Metrics.TotalPosts,
		hall.Metrics.ActiveMembers,
		hall.Metrics.EnergyPool,
	)
	return err
}

const hallColumns = `
	id, name, description, icon, created_at,
	is_private, requires_approval, minimum_reputation,
	total_posts, active_members, energy_pool`

// GetHall retrieves a hall by ID.
func (r *Repository) GetHall(ctx context.Context, id string) (*domain.Hall, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+hallColumns+` FROM halls WHERE id = $1`, id)

	hall, err := scanHall(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan hall: %w", err)
	}
	return hall, nil
}

// ListHalls returns all halls, oldest first.
func (r *Repository) ListHalls(ctx context.Context) ([]domain.Hall, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+hallColumns+` FROM halls ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query halls: %w", err)
	}
	defer rows.Close()

	var halls []domain.Hall
	for rows.Next() {
		hall, err := scanHall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hall: %w", err)
		}
		halls = append(halls, *hall)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate halls: %w", err)
	}
	return halls, nil
}

// GetCursor retrieves the saved chain position for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE service = $1`, service,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the chain position for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (service) DO UPDATE SET cursor_value = $2, updated_at = $3`,
		service, cursor, time.Now().UTC(),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*domain.Post, error) {
	var (
		p        domain.Post
		postType string
		tags     pq.StringArray
	)
	err := s.Scan(
		&p.ID,
		&p.HallID,
		&p.Author.Address,
		&p.Author.Username,
		&p.Author.Influence,
		&p.Content,
		&postType,
		&tags,
		&p.CreatedAt,
		&p.Engagement.Likes,
		&p.Engagement.Echoes,
		&p.Engagement.Comments,
		&p.QualityScore,
		&p.Archived,
		&p.ArchiveEvaluated,
	)
	if err != nil {
		return nil, err
	}
	p.Type = domain.PostType(postType)
	p.Tags = tags
	return &p, nil
}

func scanHall(s scanner) (*domain.Hall, error) {
	var h domain.Hall
	err := s.Scan(
		&h.ID,
		&h.Name,
		&h.Description,
		&h.Icon,
		&h.CreatedAt,
		&h.Settings.IsPrivate,
		&h.Settings.RequiresApproval,
		&h.Settings.MinimumReputation,
		&h.Metrics.TotalPosts,
		&h.Metrics.ActiveMembers,
		&h.Metrics.EnergyPool,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func collectPosts(rows *sql.Rows) ([]domain.Post, error) {
	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}
