package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/repository"
	"github.com/templui/campus/internal/validation"
	"golang.org/x/text/cases"
)

// PostFilter narrows List. Query matches title, content or the author's name.
type PostFilter struct {
	Type     string
	AuthorID string
	Query    string
}

type PostInput struct {
	Title   string
	Content string
	Type    string
}

// PostPatch is a partial update; nil fields are left unchanged.
type PostPatch struct {
	Title   *string
	Content *string
	Type    *string
}

type PostService struct {
	postRepo repository.PostRepository
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{
		postRepo: postRepo,
	}
}

// List returns posts newest first. A text query matches the title, the
// content or the author's name, compared case-folded like file search.
func (s *PostService) List(ctx context.Context, filter PostFilter) ([]*model.Post, error) {
	if filter.Type != "" && !model.IsPostType(filter.Type) {
		return nil, invalid(validation.ValidatePostType(filter.Type))
	}

	posts, err := s.postRepo.List(ctx, repository.PostQuery{Type: filter.Type, AuthorID: filter.AuthorID})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	query := strings.TrimSpace(filter.Query)
	if query == "" {
		return withDerived(posts), nil
	}

	fold := cases.Fold()
	needle := fold.String(query)
	contains := func(text string) bool {
		return strings.Contains(fold.String(text), needle)
	}

	matched := posts[:0]
	for _, p := range posts {
		byAuthor := p.Author != nil && contains(p.Author.Name)
		if contains(p.Title) || contains(p.Content) || byAuthor {
			matched = append(matched, p)
		}
	}
	return withDerived(matched), nil
}

// withDerived fills the engagement fields. Likes and comments are not
// stored yet, so they stay at zero.
func withDerived(posts []*model.Post) []*model.Post {
	for _, p := range posts {
		p.LikesCount = 0
		p.CommentsCount = 0
		p.Liked = false
	}
	return posts
}

func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.postRepo.ByID(ctx, id)
	if errors.Is(err, repository.ErrPostNotFound) {
		return nil, apperrors.NotFoundf("Post not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return withDerived([]*model.Post{post})[0], nil
}

func (in PostInput) validate() error {
	if err := validation.ValidatePostTitle(in.Title); err != nil {
		return err
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return err
	}
	return validation.ValidatePostType(in.Type)
}

// Create validates locally before anything reaches the database.
func (s *PostService) Create(ctx context.Context, in PostInput, authorID string) (*model.Post, error) {
	if err := in.validate(); err != nil {
		return nil, invalid(err)
	}
	if authorID == "" {
		return nil, apperrors.Rejectedf("Sign in to post", ErrNoSession)
	}

	now := time.Now().UTC()
	post := &model.Post{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(in.Title),
		Content:   strings.TrimSpace(in.Content),
		Type:      in.Type,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.postRepo.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	slog.Info("post created", "post_id", post.ID, "author_id", authorID, "type", post.Type)

	// read back with the author joined in
	return s.Get(ctx, post.ID)
}

func (p PostPatch) validate() error {
	if p.Title == nil && p.Content == nil && p.Type == nil {
		return errors.New("nothing to update")
	}
	if p.Title != nil {
		if err := validation.ValidatePostTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Content != nil {
		if err := validation.ValidatePostContent(*p.Content); err != nil {
			return err
		}
	}
	if p.Type != nil {
		return validation.ValidatePostType(*p.Type)
	}
	return nil
}

// Update only touches the post when requesterID is its author.
func (s *PostService) Update(ctx context.Context, id string, patch PostPatch, requesterID string) (*model.Post, error) {
	if err := patch.validate(); err != nil {
		return nil, invalid(err)
	}

	fields := repository.PostFields{Type: patch.Type}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		fields.Title = &title
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		fields.Content = &content
	}

	post, err := s.postRepo.Update(ctx, id, requesterID, fields)
	if errors.Is(err, repository.ErrPostNotFound) {
		return nil, apperrors.NotFoundf("Post not found or not yours", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return withDerived([]*model.Post{post})[0], nil
}

// Delete only removes the post when requesterID is its author.
func (s *PostService) Delete(ctx context.Context, id, requesterID string) error {
	_, err := s.postRepo.Delete(ctx, id, requesterID)
	if errors.Is(err, repository.ErrPostNotFound) {
		return apperrors.NotFoundf("Post not found or not yours", err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	slog.Info("post deleted", "post_id", id, "author_id", requesterID)
	return nil
}
