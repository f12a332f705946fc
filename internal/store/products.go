package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stabletrade/internal/kv"
)

// ProductTags are the listing labels accepted by the marketplace.
var ProductTags = []string{"hot", "recommended", "new", "rare", "limited", "investment"}

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Product is a user-created marketplace listing.
type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	USDCAmount   string `json:"usdcAmount"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	Tag          string `json:"tag"`
	Creator      string `json:"creator"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	IsListed     bool   `json:"isListed"`
	TokenID      string `json:"tokenId,omitempty"`
	CollectionID string `json:"collectionId,omitempty"`
}

// CreateProductParams is the user input for a new listing.
type CreateProductParams struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	USDCAmount  string `json:"usdcAmount"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Tag         string `json:"tag"`
}

// ProductUpdate holds optional field changes; nil fields are left alone.
type ProductUpdate struct {
	Name        *string `json:"name,omitempty"`
	Price       *string `json:"price,omitempty"`
	USDCAmount  *string `json:"usdcAmount,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Tag         *string `json:"tag,omitempty"`
	IsListed    *bool   `json:"isListed,omitempty"`
}

// ProductStore keeps listings without eviction.
type ProductStore struct {
	list *jsonList[Product]
	now  func() time.Time
}

func NewProductStore(backend kv.Backend) *ProductStore {
	return &ProductStore{
		list: newJSONList[Product](backend, ProductsKey, 0),
		now:  time.Now,
	}
}

func (s *ProductStore) List(ctx context.Context) ([]Product, error) {
	return s.list.list(ctx)
}

// Add validates params and appends a listed product owned by creator.
func (s *ProductStore) Add(ctx context.Context, creator string, params CreateProductParams) (Product, error) {
	if err := validateProduct(params); err != nil {
		return Product{}, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	now := s.now().UnixMilli()
	p := Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(params.Name),
		Price:       params.Price,
		USDCAmount:  params.USDCAmount,
		Description: params.Description,
		Icon:        params.Icon,
		Tag:         params.Tag,
		Creator:     creator,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsListed:    true,
	}
	_, err := s.list.update(ctx, func(items []Product) ([]Product, error) {
		return append(items, p), nil
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// Update applies upd to the product with id and bumps UpdatedAt.
func (s *ProductStore) Update(ctx context.Context, id string, upd ProductUpdate) (Product, error) {
	var updated Product
	_, err := s.list.update(ctx, func(items []Product) ([]Product, error) {
		idx := slices.IndexFunc(items, func(p Product) bool { return p.ID == id })
		if idx < 0 {
			return nil, ErrProductNotFound
		}
		p := items[idx]
		applyUpdate(&p, upd)
		if err := validateProduct(CreateProductParams{
			Name: p.Name, Price: p.Price, USDCAmount: p.USDCAmount, Tag: p.Tag,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
		}
		p.UpdatedAt = s.now().UnixMilli()
		items[idx] = p
		updated = p
		return items, nil
	})
	if err != nil {
		return Product{}, err
	}
	return updated, nil
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	_, err := s.list.update(ctx, func(items []Product) ([]Product, error) {
		out := slices.DeleteFunc(items, func(p Product) bool { return p.ID == id })
		if len(out) == len(items) {
			return nil, ErrProductNotFound
		}
		return out, nil
	})
	return err
}

func applyUpdate(p *Product, upd ProductUpdate) {
	if upd.Name != nil {
		p.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.USDCAmount != nil {
		p.USDCAmount = *upd.USDCAmount
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Icon != nil {
		p.Icon = *upd.Icon
	}
	if upd.Tag != nil {
		p.Tag = *upd.Tag
	}
	if upd.IsListed != nil {
		p.IsListed = *upd.IsListed
	}
}

func validateProduct(p CreateProductParams) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if err := validatePositive("price", p.Price); err != nil {
		return err
	}
	if err := validatePositive("usdcAmount", p.USDCAmount); err != nil {
		return err
	}
	if !slices.Contains(ProductTags, p.Tag) {
		return fmt.Errorf("unknown tag %q", p.Tag)
	}
	return nil
}

func validatePositive(field, value string) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%s must be a decimal number", field)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}
