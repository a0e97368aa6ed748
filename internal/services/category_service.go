package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"github.com/pesatrack/backend/internal/models"
	"github.com/rs/zerolog"
)

// CategoryService stores default and user categories and caches each user's list.
// A user's own categories come before the defaults so they win keyword matching.
type CategoryService struct {
	db        *sql.DB
	cache     *ristretto.Cache
	ttl       time.Duration
	validator *ValidationHelper
	log       zerolog.Logger
}

var _ CategoryProvider = (*CategoryService)(nil)

func NewCategoryService(db *sql.DB, cacheTTL time.Duration, log zerolog.Logger) (*CategoryService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize category cache: %w", err)
	}

	return &CategoryService{
		db:        db,
		cache:     cache,
		ttl:       cacheTTL,
		validator: NewValidationHelper(),
		log:       log.With().Str("component", "category_service").Logger(),
	}, nil
}

func categoryCacheKey(userID string) string {
	return "categories:" + userID
}

func (s *CategoryService) ListCategories(ctx context.Context, userID string) ([]models.Category, error) {
	if cached, ok := s.cache.Get(categoryCacheKey(userID)); ok {
		if categories, ok := cached.([]models.Category); ok {
			return append([]models.Category(nil), categories...), nil
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, icon, color, keywords, is_default, created_at
		FROM categories WHERE user_id IS NULL OR user_id = $1
		ORDER BY user_id IS NULL, position, created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Icon, &c.Color, &c.Keywords, &c.IsDefault, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if c.Keywords == nil {
			c.Keywords = models.StringList{}
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.SetWithTTL(categoryCacheKey(userID), categories, 1, s.ttl)
	// make the entry visible to the next Get
	s.cache.Wait()
	return append([]models.Category(nil), categories...), nil
}

func (s *CategoryService) CreateCategory(ctx context.Context, userID string, req *models.CategoryCreateRequest) (*models.Category, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	owner := userID
	category := &models.Category{
		ID:        uuid.New().String(),
		UserID:    &owner,
		Name:      req.Name,
		Icon:      req.Icon,
		Color:     req.Color,
		Keywords:  models.StringList(req.Keywords),
		CreatedAt: time.Now(),
	}
	if category.Keywords == nil {
		category.Keywords = models.StringList{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, icon, color, keywords, is_default, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, 0, $7)`,
		category.ID, userID, category.Name, category.Icon, category.Color, category.Keywords, category.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.cache.Del(categoryCacheKey(userID))
	s.log.Info().Str("user_id", userID).Str("category_id", category.ID).Msg("category created")
	return category, nil
}

// SeedDefaults inserts defaults in order when the categories table is empty and returns
// how many rows were written.
func (s *CategoryService) SeedDefaults(ctx context.Context, defaults []models.Category) (int, error) {
	if _, err := ValidateCategories(defaults); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for i, c := range defaults {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, user_id, name, icon, color, keywords, is_default, position, created_at)
			VALUES ($1, NULL, $2, $3, $4, $5, true, $6, $7)`,
			c.ID, c.Name, c.Icon, c.Color, c.Keywords, i+1, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to seed category %s: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit default categories: %w", err)
	}

	s.cache.Clear()
	s.log.Info().Int("count", len(defaults)).Msg("default categories seeded")
	return len(defaults), nil
}

func (s *CategoryService) Close() {
	s.cache.Close()
}
