package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
)

type VariantDTO struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"priceCents"`
	Stock      int       `json:"stock"`
	IsActive   bool      `json:"isActive"`
}

type ImageDTO struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	Position int       `json:"position"`
}

type ProductDTO struct {
	ID          uuid.UUID    `json:"id"`
	ShopID      uuid.UUID    `json:"shopId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	PriceCents  int          `json:"priceCents"`
	IsActive    bool         `json:"isActive"`
	Variants    []VariantDTO `json:"variants"`
	Images      []ImageDTO   `json:"images"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ProductList is one page of products plus the cursor for the next page.
type ProductList struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// DeleteResult reports whether the product was removed or archived because
// orders reference it.
type DeleteResult struct {
	Deleted  bool `json:"deleted"`
	Archived bool `json:"archived"`
}

// FromModel maps a product with its preloaded variants and images.
func FromModel(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:          product.ID,
		ShopID:      product.ShopID,
		Title:       product.Title,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		IsActive:    product.IsActive,
		Variants:    make([]VariantDTO, 0, len(product.Variants)),
		Images:      make([]ImageDTO, 0, len(product.Images)),
		CreatedAt:   product.CreatedAt,
	}
	for _, variant := range product.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{
			ID:         variant.ID,
			Name:       variant.Name,
			PriceCents: variant.PriceCents,
			Stock:      variant.Stock,
			IsActive:   variant.IsActive,
		})
	}
	for _, image := range product.Images {
		dto.Images = append(dto.Images, ImageDTO{
			ID:       image.ID,
			URL:      image.URL,
			Position: image.Position,
		})
	}
	return dto
}

func listFromModels(rows []models.Product, next string) *ProductList {
	list := &ProductList{
		Products:   make([]ProductDTO, 0, len(rows)),
		NextCursor: next,
	}
	for i := range rows {
		list.Products = append(list.Products, *FromModel(&rows[i]))
	}
	return list
}
