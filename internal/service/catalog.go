package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// CatalogService serves read-only catalog views. Product detail is cached in
// Redis; pricing never goes through this cache.
type CatalogService struct {
	productRepo repository.ProductRepository
	catalogRepo repository.CatalogRepository
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	catalogRepo repository.CatalogRepository,
	redisClient *redis.Client,
	cacheTTL time.Duration,
) *CatalogService {
	return &CatalogService{
		productRepo: productRepo,
		catalogRepo: catalogRepo,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
	}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.productRepo.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return toProductResponses(products), nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*dto.ProductResponse, error) {
	cacheKey := "product:" + strconv.FormatInt(id, 10)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)
	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return &resp, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]dto.CategoryResponse, error) {
	categories, err := s.catalogRepo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	resp := make([]dto.CategoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, dto.CategoryResponse{ID: c.ID, Name: c.Name})
	}
	return resp, nil
}

// ListCollections lists active collections, optionally only those for one
// gender category.
func (s *CatalogService) ListCollections(ctx context.Context, gender string) ([]dto.CollectionResponse, error) {
	g := model.Gender(gender)
	if g != "" && !g.Valid() {
		return nil, newError(ErrInvalidInput, "gender_category must be one of her, him, them")
	}
	collections, err := s.catalogRepo.ListActiveCollections(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	resp := make([]dto.CollectionResponse, 0, len(collections))
	for _, c := range collections {
		resp = append(resp, dto.CollectionResponse{
			ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description, Image: c.Image,
			Gender: string(c.Gender),
		})
	}
	return resp, nil
}

func (s *CatalogService) GetCollection(ctx context.Context, slug string) (*dto.CollectionDetailResponse, error) {
	c, err := s.catalogRepo.GetActiveCollection(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	if c == nil {
		return nil, ErrCollectionNotFound
	}
	return &dto.CollectionDetailResponse{
		ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description,
		Products: toProductResponses(c.Products),
	}, nil
}

func toProductResponses(products []model.Product) []dto.ProductResponse {
	resp := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}
	return resp
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Image:       p.Image,
	}
}
