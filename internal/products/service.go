package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
)

type orderCounter interface {
	CountOrderItemsByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

// Service exposes vendor catalog management plus public catalog reads.
type Service interface {
	Create(ctx context.Context, shopID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, shopID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, shopID, productID uuid.UUID) (*DeleteResult, error)
	GetForShop(ctx context.Context, shopID, productID uuid.UUID) (*ProductDTO, error)
	ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*ProductList, error)

	AddVariant(ctx context.Context, shopID, productID uuid.UUID, input VariantInput) (*ProductDTO, error)
	UpdateVariant(ctx context.Context, shopID, productID, variantID uuid.UUID, input UpdateVariantInput) (*ProductDTO, error)
	DeleteVariant(ctx context.Context, shopID, productID, variantID uuid.UUID) (*ProductDTO, error)

	AddImage(ctx context.Context, shopID, productID uuid.UUID, input ImageInput) (*ProductDTO, error)
	RemoveImage(ctx context.Context, shopID, productID, imageID uuid.UUID) (*ProductDTO, error)

	GetPublic(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListPublic(ctx context.Context, shopID *uuid.UUID, params pagination.Params) (*ProductList, error)
}

type service struct {
	repo   Repository
	orders orderCounter
}

// NewService builds the products service.
func NewService(repo Repository, orders orderCounter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order counter required")
	}
	return &service{repo: repo, orders: orders}, nil
}

type VariantInput struct {
	Name       string
	PriceCents int
	Stock      int
	IsActive   *bool
}

type ImageInput struct {
	URL      string
	Position int
}

type CreateProductInput struct {
	Title       string
	Description string
	IsActive    *bool
	Variants    []VariantInput
	Images      []ImageInput
}

type UpdateProductInput struct {
	Title       *string
	Description *string
	IsActive    *bool
}

type UpdateVariantInput struct {
	Name       *string
	PriceCents *int
	Stock      *int
	IsActive   *bool
}

// MirrorPrice is the canonical display price: the cheapest active variant's
// price, or zero when none are active.
func MirrorPrice(variants []models.ProductVariant) int {
	price := 0
	found := false
	for _, variant := range variants {
		if !variant.IsActive {
			continue
		}
		if !found || variant.PriceCents < price {
			price = variant.PriceCents
			found = true
		}
	}
	return price
}

func (s *service) Create(ctx context.Context, shopID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}

	product := &models.Product{
		ShopID:      shopID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		IsActive:    true,
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	for _, variant := range input.Variants {
		built, err := buildVariant(variant)
		if err != nil {
			return nil, err
		}
		product.Variants = append(product.Variants, *built)
	}
	for _, image := range input.Images {
		if strings.TrimSpace(image.URL) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "image url required")
		}
		product.Images = append(product.Images, models.ProductImage{
			URL:      strings.TrimSpace(image.URL),
			Position: image.Position,
		})
	}
	product.PriceCents = MirrorPrice(product.Variants)

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return FromModel(product), nil
}

func (s *service) Update(ctx context.Context, shopID, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
		}
		product.Title = title
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return FromModel(product), nil
}

// Delete removes a product, or archives it when order history references it:
// historical order items must keep resolving to a product row.
func (s *service) Delete(ctx context.Context, shopID, productID uuid.UUID) (*DeleteResult, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}

	ordered, err := s.orders.CountOrderItemsByProduct(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count order references")
	}
	if ordered > 0 {
		product.IsActive = false
		if err := s.repo.Save(ctx, product); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive product")
		}
		return &DeleteResult{Archived: true}, nil
	}

	if err := s.repo.Delete(ctx, product.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return &DeleteResult{Deleted: true}, nil
}

func (s *service) GetForShop(ctx context.Context, shopID, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}
	return FromModel(product), nil
}

func (s *service) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*ProductList, error) {
	rows, next, err := s.repo.ListByShop(ctx, shopID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return listFromModels(rows, next), nil
}

func (s *service) AddVariant(ctx context.Context, shopID, productID uuid.UUID, input VariantInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}

	variant, err := buildVariant(input)
	if err != nil {
		return nil, err
	}
	variant.ProductID = product.ID
	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant")
	}
	return s.refreshPrice(ctx, shopID, productID)
}

func (s *service) UpdateVariant(ctx context.Context, shopID, productID, variantID uuid.UUID, input UpdateVariantInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}

	variant := findVariant(product, variantID)
	if variant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant name required")
		}
		variant.Name = name
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant price must not be negative")
		}
		variant.PriceCents = *input.PriceCents
	}
	if input.Stock != nil {
		stock := *input.Stock
		if stock < 0 {
			stock = 0
		}
		variant.Stock = stock
	}
	if input.IsActive != nil {
		variant.IsActive = *input.IsActive
	}

	if err := s.repo.SaveVariant(ctx, variant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update variant")
	}
	return s.refreshPrice(ctx, shopID, productID)
}

func (s *service) DeleteVariant(ctx context.Context, shopID, productID, variantID uuid.UUID) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}
	if findVariant(product, variantID) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}

	if err := s.repo.DeleteVariant(ctx, variantID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete variant")
	}
	return s.refreshPrice(ctx, shopID, productID)
}

func (s *service) AddImage(ctx context.Context, shopID, productID uuid.UUID, input ImageInput) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.URL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image url required")
	}

	image := &models.ProductImage{
		ProductID: product.ID,
		URL:       strings.TrimSpace(input.URL),
		Position:  input.Position,
	}
	if err := s.repo.CreateImage(ctx, image); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create image")
	}
	return s.GetForShop(ctx, shopID, productID)
}

func (s *service) RemoveImage(ctx context.Context, shopID, productID, imageID uuid.UUID) (*ProductDTO, error) {
	if _, err := s.loadOwned(ctx, shopID, productID); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteImage(ctx, productID, imageID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete image")
	}
	return s.GetForShop(ctx, shopID, productID)
}

func (s *service) GetPublic(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindPublic(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return FromModel(product), nil
}

func (s *service) ListPublic(ctx context.Context, shopID *uuid.UUID, params pagination.Params) (*ProductList, error) {
	rows, next, err := s.repo.ListPublic(ctx, shopID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return listFromModels(rows, next), nil
}

// loadOwned maps a product outside the caller's shop to NotFound.
func (s *service) loadOwned(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindForShop(ctx, shopID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// refreshPrice reloads the product and re-mirrors the display price from its
// variants.
func (s *service) refreshPrice(ctx context.Context, shopID, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.loadOwned(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}
	mirrored := MirrorPrice(product.Variants)
	if mirrored != product.PriceCents {
		product.PriceCents = mirrored
		if err := s.repo.Save(ctx, product); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product price")
		}
	}
	return FromModel(product), nil
}

func buildVariant(input VariantInput) (*models.ProductVariant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant name required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant price must not be negative")
	}
	stock := input.Stock
	if stock < 0 {
		stock = 0
	}
	variant := &models.ProductVariant{
		Name:       name,
		PriceCents: input.PriceCents,
		Stock:      stock,
		IsActive:   true,
	}
	if input.IsActive != nil {
		variant.IsActive = *input.IsActive
	}
	return variant, nil
}

func findVariant(product *models.Product, variantID uuid.UUID) *models.ProductVariant {
	for i := range product.Variants {
		if product.Variants[i].ID == variantID {
			return &product.Variants[i]
		}
	}
	return nil
}
