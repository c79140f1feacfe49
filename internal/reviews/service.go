package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
)

type productFinder interface {
	FindPublic(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	BuyerID   uuid.UUID `json:"buyerId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReviewList struct {
	Reviews       []ReviewDTO `json:"reviews"`
	AverageRating float64     `json:"averageRating"`
	Count         int64       `json:"count"`
	NextCursor    string      `json:"nextCursor,omitempty"`
}

// Service manages buyer reviews of public products.
type Service interface {
	Submit(ctx context.Context, buyerID, productID uuid.UUID, rating int, comment string) (*ReviewDTO, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ReviewList, error)
	Delete(ctx context.Context, buyerID, productID uuid.UUID) error
}

type service struct {
	repo     Repository
	products productFinder
}

// NewService builds the reviews service.
func NewService(repo Repository, products productFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	return &service{repo: repo, products: products}, nil
}

// Submit creates or overwrites the buyer's review for the product. One review
// per buyer per product.
func (s *service) Submit(ctx context.Context, buyerID, productID uuid.UUID, rating int, comment string) (*ReviewDTO, error) {
	if rating < 1 || rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	if _, err := s.products.FindPublic(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	review := &models.Review{
		ProductID: productID,
		BuyerID:   buyerID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	if err := s.repo.Upsert(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save review")
	}

	stored, err := s.repo.FindByProductAndBuyer(ctx, productID, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	return fromModel(stored), nil
}

func (s *service) ListForProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ReviewList, error) {
	rows, next, err := s.repo.ListByProduct(ctx, productID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	avg, count, err := s.repo.AverageRating(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate reviews")
	}

	list := &ReviewList{
		Reviews:       make([]ReviewDTO, 0, len(rows)),
		AverageRating: avg,
		Count:         count,
		NextCursor:    next,
	}
	for i := range rows {
		list.Reviews = append(list.Reviews, *fromModel(&rows[i]))
	}
	return list, nil
}

func (s *service) Delete(ctx context.Context, buyerID, productID uuid.UUID) error {
	if err := s.repo.Delete(ctx, productID, buyerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}

func fromModel(review *models.Review) *ReviewDTO {
	return &ReviewDTO{
		ID:        review.ID,
		ProductID: review.ProductID,
		BuyerID:   review.BuyerID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
	}
}
