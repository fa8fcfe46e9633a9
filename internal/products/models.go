package products

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"` // smallest currency unit
	Currency    string    `json:"currency"`
	ImageURL    string    `json:"image_url"`
	CategoryID  *string   `json:"category_id"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewProduct struct {
	Name        string  `json:"name" validate:"required,min=2,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Price       int64   `json:"price" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	CategoryID  *string `json:"category_id" validate:"omitempty,uuid"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

type UpdateProduct struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Price       *int64  `json:"price" validate:"omitempty,gt=0"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	CategoryID  *string `json:"category_id" validate:"omitempty,uuid"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
}

// ListFilter narrows and pages ListProducts results.
type ListFilter struct {
	CategoryID string
	Page       int
	PageSize   int
}
