package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
)

type reviewKey struct {
	product uuid.UUID
	buyer   uuid.UUID
}

type stubReviewRepo struct {
	reviews map[reviewKey]*models.Review
}

func newStubReviewRepo() *stubReviewRepo {
	return &stubReviewRepo{reviews: map[reviewKey]*models.Review{}}
}

func (s *stubReviewRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubReviewRepo) Upsert(ctx context.Context, review *models.Review) error {
	key := reviewKey{review.ProductID, review.BuyerID}
	if existing, ok := s.reviews[key]; ok {
		existing.Rating = review.Rating
		existing.Comment = review.Comment
		return nil
	}
	review.ID = uuid.New()
	review.CreatedAt = time.Now().UTC()
	s.reviews[key] = review
	return nil
}

func (s *stubReviewRepo) FindByProductAndBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*models.Review, error) {
	if review, ok := s.reviews[reviewKey{productID, buyerID}]; ok {
		return review, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubReviewRepo) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error) {
	var rows []models.Review
	for key, review := range s.reviews {
		if key.product == productID {
			rows = append(rows, *review)
		}
	}
	return rows, "", nil
}

func (s *stubReviewRepo) Delete(ctx context.Context, productID, buyerID uuid.UUID) error {
	delete(s.reviews, reviewKey{productID, buyerID})
	return nil
}

func (s *stubReviewRepo) AverageRating(ctx context.Context, productID uuid.UUID) (float64, int64, error) {
	var sum, count int64
	for key, review := range s.reviews {
		if key.product == productID {
			sum += int64(review.Rating)
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

type stubProducts struct {
	public map[uuid.UUID]*models.Product
}

func (s *stubProducts) FindPublic(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if product, ok := s.public[productID]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type reviewsFixture struct {
	svc       Service
	repo      *stubReviewRepo
	products  *stubProducts
	productID uuid.UUID
	buyerID   uuid.UUID
}

func newReviewsFixture(t *testing.T) *reviewsFixture {
	t.Helper()
	repo := newStubReviewRepo()
	productID := uuid.New()
	products := &stubProducts{public: map[uuid.UUID]*models.Product{
		productID: {ID: productID, Title: "Miel de abeja", IsActive: true},
	}}
	svc, err := NewService(repo, products)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &reviewsFixture{svc: svc, repo: repo, products: products, productID: productID, buyerID: uuid.New()}
}

func TestSubmitValidatesRating(t *testing.T) {
	f := newReviewsFixture(t)
	for _, rating := range []int{0, -1, 6, 100} {
		_, err := f.svc.Submit(context.Background(), f.buyerID, f.productID, rating, "")
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}
}

func TestSubmitRequiresPublicProduct(t *testing.T) {
	f := newReviewsFixture(t)
	_, err := f.svc.Submit(context.Background(), f.buyerID, uuid.New(), 4, "bueno")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.repo.reviews) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestSubmitOverwritesPriorReview(t *testing.T) {
	f := newReviewsFixture(t)

	first, err := f.svc.Submit(context.Background(), f.buyerID, f.productID, 2, "  regular  ")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Rating != 2 || first.Comment != "regular" {
		t.Fatalf("first review: %+v", first)
	}

	second, err := f.svc.Submit(context.Background(), f.buyerID, f.productID, 5, "excelente")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("resubmission must overwrite, not create")
	}
	if second.Rating != 5 || second.Comment != "excelente" {
		t.Fatalf("second review: %+v", second)
	}
	if len(f.repo.reviews) != 1 {
		t.Fatalf("reviews stored: %d", len(f.repo.reviews))
	}
}

func TestListAggregatesRatings(t *testing.T) {
	f := newReviewsFixture(t)
	for _, rating := range []int{5, 3, 4} {
		if _, err := f.svc.Submit(context.Background(), uuid.New(), f.productID, rating, ""); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	list, err := f.svc.ListForProduct(context.Background(), f.productID, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Count != 3 {
		t.Fatalf("count: %d", list.Count)
	}
	if list.AverageRating != 4 {
		t.Fatalf("average: %f", list.AverageRating)
	}
	if len(list.Reviews) != 3 {
		t.Fatalf("reviews: %d", len(list.Reviews))
	}
}

func TestDeleteRemovesOwnReviewOnly(t *testing.T) {
	f := newReviewsFixture(t)
	otherBuyer := uuid.New()
	if _, err := f.svc.Submit(context.Background(), f.buyerID, f.productID, 4, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), otherBuyer, f.productID, 2, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.svc.Delete(context.Background(), f.buyerID, f.productID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := f.repo.reviews[reviewKey{f.productID, otherBuyer}]; !ok {
		t.Fatal("other buyer's review must survive")
	}
	if _, ok := f.repo.reviews[reviewKey{f.productID, f.buyerID}]; ok {
		t.Fatal("own review must be gone")
	}
}
