package service

import (
	"context"
	"errors"

	"academy-storefront/internal/model"
	"academy-storefront/internal/repository"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50
)

type BlogService interface {
	ListPosts(ctx context.Context, categorySlug string, page, pageSize int) ([]*model.BlogPost, error)
	GetPost(ctx context.Context, slug string) (*model.BlogPost, error)
	Categories(ctx context.Context) ([]*model.BlogCategory, error)
}

type blogServiceImpl struct {
	blogRepo repository.BlogRepository
}

func NewBlogService(blogRepo repository.BlogRepository) BlogService {
	return &blogServiceImpl{blogRepo: blogRepo}
}

// ListPosts pages through published posts, newest first. Pages start at 1.
// An unknown category yields an empty list.
func (s *blogServiceImpl) ListPosts(ctx context.Context, categorySlug string, page, pageSize int) ([]*model.BlogPost, error) {
	limit, offset := pageBounds(page, pageSize)

	categoryID := ""
	if categorySlug != "" {
		category, err := s.blogRepo.FindCategoryBySlug(ctx, categorySlug)
		if errors.Is(err, repository.ErrNotFound) {
			return []*model.BlogPost{}, nil
		}
		if err != nil {
			return nil, err
		}
		categoryID = category.ID
	}

	return s.blogRepo.ListPublished(ctx, categoryID, limit, offset)
}

func (s *blogServiceImpl) GetPost(ctx context.Context, slug string) (*model.BlogPost, error) {
	post, err := s.blogRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished {
		return nil, repository.ErrNotFound
	}
	return post, nil
}

func (s *blogServiceImpl) Categories(ctx context.Context) ([]*model.BlogCategory, error) {
	return s.blogRepo.Categories(ctx)
}

func pageBounds(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
