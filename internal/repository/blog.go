package repository

import (
	"context"
	"fmt"
	"time"

	"academy-storefront/internal/client"
	"academy-storefront/internal/model"
)

const (
	blogPostsTable      = "blog_posts"
	blogCategoriesTable = "blog_categories"
)

type BlogRepository interface {
	ListPublished(ctx context.Context, categoryID string, limit, offset int) ([]*model.BlogPost, error)
	FindBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
	FindByID(ctx context.Context, postID string) (*model.BlogPost, error)
	Create(ctx context.Context, post *model.BlogPost) (*model.BlogPost, error)
	Update(ctx context.Context, postID string, fields map[string]interface{}) (*model.BlogPost, error)
	Categories(ctx context.Context) ([]*model.BlogCategory, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*model.BlogCategory, error)
}

type blogRepoImpl struct {
	backend client.BackendClient
}

func NewBlogRepository(backend client.BackendClient) BlogRepository {
	return &blogRepoImpl{
		backend: backend,
	}
}

func (r *blogRepoImpl) ListPublished(ctx context.Context, categoryID string, limit, offset int) ([]*model.BlogPost, error) {
	q := client.From(blogPostsTable).
		Where(client.Eq("is_published", true)).
		OrderBy("published_at.desc")
	if categoryID != "" {
		q.Where(client.Eq("category_id", categoryID))
	}
	if limit > 0 {
		q.Page(limit, offset)
	}

	var posts []*model.BlogPost
	if err := r.backend.Query(ctx, q, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *blogRepoImpl) FindBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	return r.findOne(ctx, client.Eq("slug", slug))
}

func (r *blogRepoImpl) FindByID(ctx context.Context, postID string) (*model.BlogPost, error) {
	return r.findOne(ctx, client.Eq("id", postID))
}

func (r *blogRepoImpl) findOne(ctx context.Context, filter client.Filter) (*model.BlogPost, error) {
	var posts []*model.BlogPost
	q := client.From(blogPostsTable).Where(filter).Page(1, 0)
	if err := r.backend.Query(ctx, q, &posts); err != nil {
		return nil, err
	}
	post, ok := first(posts)
	if !ok {
		return nil, ErrNotFound
	}
	return post, nil
}

func (r *blogRepoImpl) Create(ctx context.Context, post *model.BlogPost) (*model.BlogPost, error) {
	var rows []*model.BlogPost
	if err := r.backend.Mutate(ctx, client.Insert(blogPostsTable, post), &rows); err != nil {
		return nil, err
	}
	created, ok := first(rows)
	if !ok {
		return nil, fmt.Errorf("create blog post: no row returned")
	}
	return created, nil
}

func (r *blogRepoImpl) Update(ctx context.Context, postID string, fields map[string]interface{}) (*model.BlogPost, error) {
	patch := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC()

	var rows []*model.BlogPost
	if err := r.backend.Mutate(ctx, client.Update(blogPostsTable, patch, client.Eq("id", postID)), &rows); err != nil {
		return nil, err
	}
	post, ok := first(rows)
	if !ok {
		return nil, ErrNotFound
	}
	return post, nil
}

func (r *blogRepoImpl) Categories(ctx context.Context) ([]*model.BlogCategory, error) {
	var categories []*model.BlogCategory
	if err := r.backend.Query(ctx, client.From(blogCategoriesTable).OrderBy("name.asc"), &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *blogRepoImpl) FindCategoryBySlug(ctx context.Context, slug string) (*model.BlogCategory, error) {
	var categories []*model.BlogCategory
	q := client.From(blogCategoriesTable).Where(client.Eq("slug", slug)).Page(1, 0)
	if err := r.backend.Query(ctx, q, &categories); err != nil {
		return nil, err
	}
	category, ok := first(categories)
	if !ok {
		return nil, ErrNotFound
	}
	return category, nil
}
