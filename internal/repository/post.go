package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
)

var (
	// ErrPostNotFound is also returned when the requester does not own the post.
	ErrPostNotFound = errors.New("post not found")
)

const postColumns = `id, title, content, type, author_id, created_at, updated_at`

const postSelect = `
	SELECT p.id, p.title, p.content, p.type, p.author_id, p.created_at, p.updated_at,
	       pr.name AS author_name, pr.role AS author_role, pr.department AS author_department, pr.email AS author_email
	FROM posts p
	JOIN profiles pr ON pr.id = p.author_id`

// PostQuery narrows List. Zero fields are ignored.
type PostQuery struct {
	Type     string
	AuthorID string
}

// PostFields is a partial update; nil fields are left unchanged.
type PostFields struct {
	Title   *string
	Content *string
	Type    *string
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	ByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, q PostQuery) ([]*model.Post, error)
	Update(ctx context.Context, id, authorID string, fields PostFields) (*model.Post, error)
	Delete(ctx context.Context, id, authorID string) (*model.Post, error)
}

type postRow struct {
	model.Post
	AuthorName       string  `db:"author_name"`
	AuthorRole       string  `db:"author_role"`
	AuthorDepartment *string `db:"author_department"`
	AuthorEmail      string  `db:"author_email"`
}

func (r postRow) post() *model.Post {
	p := r.Post
	p.Author = &model.PostAuthor{
		ID:         r.AuthorID,
		Name:       r.AuthorName,
		Role:       r.AuthorRole,
		Department: r.AuthorDepartment,
		Email:      r.AuthorEmail,
	}
	return &p
}

type postRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewPostRepository(db *sqlx.DB, pub realtime.Publisher) PostRepository {
	return &postRepository{db: db, pub: pub}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	query := `INSERT INTO posts (` + postColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		post.ID,
		post.Title,
		post.Content,
		post.Type,
		post.AuthorID,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return err
	}

	publish(ctx, r.pub, TablePosts, realtime.Insert, post.ID, rowOnly(post), nil)
	return nil
}

func (r *postRepository) ByID(ctx context.Context, id string) (*model.Post, error) {
	var row postRow
	err := r.db.GetContext(ctx, &row, postSelect+` WHERE p.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.post(), nil
}

// List returns posts newest first.
func (r *postRepository) List(ctx context.Context, q PostQuery) ([]*model.Post, error) {
	var where []string
	var args []any

	if q.Type != "" {
		where = append(where, "p.type = ?")
		args = append(args, q.Type)
	}
	if q.AuthorID != "" {
		where = append(where, "p.author_id = ?")
		args = append(args, q.AuthorID)
	}

	query := postSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC"

	var rows []postRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	posts := make([]*model.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.post())
	}
	return posts, nil
}

// Update is constrained by both id and author; a non-owner affects zero rows
// and gets ErrPostNotFound.
func (r *postRepository) Update(ctx context.Context, id, authorID string, fields PostFields) (*model.Post, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if fields.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *fields.Content)
	}
	if fields.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *fields.Type)
	}

	args = append(args, id, authorID)
	query := r.db.Rebind(`UPDATE posts SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND author_id = ?`)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrPostNotFound
	}

	post, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	publish(ctx, r.pub, TablePosts, realtime.Update, post.ID, rowOnly(post), nil)
	return post, nil
}

// Delete is constrained like Update. The removed post is returned.
func (r *postRepository) Delete(ctx context.Context, id, authorID string) (*model.Post, error) {
	post, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrPostNotFound
	}

	publish(ctx, r.pub, TablePosts, realtime.Delete, post.ID, nil, rowOnly(post))
	return post, nil
}

// postRecord is the posts table row as carried by change events.
type postRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func rowOnly(p *model.Post) postRecord {
	return postRecord{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Type:      p.Type,
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
