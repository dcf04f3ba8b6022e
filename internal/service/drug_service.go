package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"pharmcatalog/internal/cache"
	apperrors "pharmcatalog/internal/errors"
	"pharmcatalog/internal/model"
	"pharmcatalog/internal/repository"
)

const (
	drugListCacheKey = "drugs:list"
	// A List miss that read the store before a concurrent write committed can
	// repopulate the list key after that write invalidated it. The list key
	// therefore never outlives maxListTTL.
	maxListTTL = 30 * time.Second
)

// listCacheTTL bounds how long a stale listing can be served.
func listCacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > maxListTTL {
		return maxListTTL
	}
	return ttl
}

// DrugService exposes catalog operations. It performs no file I/O; image
// references arrive already stored.
type DrugService interface {
	List(ctx context.Context) ([]model.Drug, error)
	Get(ctx context.Context, id uint) (*model.Drug, error)
	Create(ctx context.Context, patch DrugPatch) (*model.Drug, error)
	Update(ctx context.Context, id uint, patch DrugPatch) (*model.Drug, error)
	Delete(ctx context.Context, id uint) error
}

type drugService struct {
	repo  repository.DrugRepository
	cache *cache.Client
	ttl   time.Duration
}

// NewDrugService builds a DrugService with repository and cache.
// A nil cache disables caching.
func NewDrugService(repo repository.DrugRepository, cache *cache.Client, ttl time.Duration) DrugService {
	return &drugService{repo: repo, cache: cache, ttl: ttl}
}

func (s *drugService) cacheKey(id uint) string {
	return fmt.Sprintf("drug:%d", id)
}

// List returns the catalog newest-first.
func (s *drugService) List(ctx context.Context) ([]model.Drug, error) {
	var cached []model.Drug
	if s.cache.GetJSON(ctx, drugListCacheKey, &cached) {
		return cached, nil
	}

	drugs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drugs: %w", err)
	}
	s.cache.SetJSON(ctx, drugListCacheKey, drugs, listCacheTTL(s.ttl))
	return drugs, nil
}

// Get retrieves a drug by ID with caching.
func (s *drugService) Get(ctx context.Context, id uint) (*model.Drug, error) {
	var cached model.Drug
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	drug, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapDrugErr(err, "get", id)
	}
	s.cache.SetJSON(ctx, s.cacheKey(id), drug, s.ttl)
	return drug, nil
}

// Create stores a new drug; the patch must carry a name.
func (s *drugService) Create(ctx context.Context, patch DrugPatch) (*model.Drug, error) {
	if !patch.Name.Set {
		return nil, apperrors.NewValidationError(FieldName, "is required")
	}

	drug := &model.Drug{Images: []string{}}
	patch.Apply(drug)
	if err := s.repo.Create(ctx, drug); err != nil {
		return nil, fmt.Errorf("create drug: %w", err)
	}

	s.invalidate(ctx, drug.ID)
	return drug, nil
}

// Update merges patch into the stored drug.
func (s *drugService) Update(ctx context.Context, id uint, patch DrugPatch) (*model.Drug, error) {
	drug, err := s.repo.Update(ctx, id, func(d *model.Drug) error {
		patch.Apply(d)
		return nil
	})
	if err != nil {
		return nil, mapDrugErr(err, "update", id)
	}

	s.invalidate(ctx, id)
	return drug, nil
}

// Delete removes a drug immediately.
func (s *drugService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapDrugErr(err, "delete", id)
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *drugService) invalidate(ctx context.Context, id uint) {
	_ = s.cache.Delete(ctx, drugListCacheKey, s.cacheKey(id))
}

func mapDrugErr(err error, op string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s drug %d: %w", op, id, apperrors.ErrDrugNotFound)
	}
	return fmt.Errorf("%s drug %d: %w", op, id, err)
}
