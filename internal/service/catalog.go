package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jipraks/kasirgratisan/internal/domain"
)

type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type ProductInput struct {
	Name       string       `json:"name"`
	SKU        string       `json:"sku"`
	CategoryID int64        `json:"categoryId"`
	Price      domain.Money `json:"price"`
	HPP        domain.Money `json:"hpp"`
	Stock      int          `json:"stock"`
	Unit       string       `json:"unit"`
	Photo      string       `json:"photo,omitempty"`
	Barcode    string       `json:"barcode,omitempty"`
}

type SupplierInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type PaymentMethodInput struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	IsDefault bool   `json:"isDefault"`
}

// Categories lists categories that have not been deleted.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	all, err := s.categories.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(c domain.Category) bool { return c.Lifecycle.IsDeleted() }), nil
}

// Category resolves a category by id, deleted or not.
func (s *Service) Category(ctx context.Context, id int64) (domain.Category, error) {
	return s.categories.Get(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Category{}, domain.Invalid("name", "must not be empty")
	}
	c := domain.Category{
		Name:      name,
		Color:     strings.TrimSpace(in.Color),
		Icon:      strings.TrimSpace(in.Icon),
		CreatedAt: s.clock(),
	}
	id, err := s.categories.Add(ctx, c)
	if err != nil {
		return domain.Category{}, err
	}
	c.ID = id
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (domain.Category, error) {
	c, err := lookup(ctx, s.categories, "id", id)
	if err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Category{}, domain.Invalid("name", "must not be empty")
	}
	c.Name = name
	c.Color = strings.TrimSpace(in.Color)
	c.Icon = strings.TrimSpace(in.Icon)
	if err := s.categories.Put(ctx, id, c); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// DeleteCategory soft-deletes; products filed under it keep their reference.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	c, err := lookup(ctx, s.categories, "id", id)
	if err != nil {
		return err
	}
	if c.Lifecycle.IsDeleted() {
		return nil
	}
	c.Lifecycle = domain.Deleted(s.clock())
	return s.categories.Put(ctx, id, c)
}

// Products lists products that have not been deleted.
func (s *Service) Products(ctx context.Context) ([]domain.Product, error) {
	all, err := s.products.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(p domain.Product) bool { return p.Lifecycle.IsDeleted() }), nil
}

// Product resolves a product by id, deleted or not, so old sales can still
// show what was sold.
func (s *Service) Product(ctx context.Context, id int64) (domain.Product, error) {
	return s.products.Get(ctx, id)
}

// SearchProducts matches active products by name, SKU or barcode,
// case-insensitively.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	active, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return active, nil
	}
	return slices.DeleteFunc(active, func(p domain.Product) bool {
		return !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.SKU), q) &&
			p.Barcode != query
	}), nil
}

func (s *Service) validateProduct(ctx context.Context, in ProductInput) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Unit = strings.TrimSpace(in.Unit)
	in.Barcode = strings.TrimSpace(in.Barcode)

	switch {
	case in.Name == "":
		return in, domain.Invalid("name", "must not be empty")
	case in.Price < 0:
		return in, domain.Invalid("price", "must not be negative")
	case in.HPP < 0:
		return in, domain.Invalid("hpp", "must not be negative")
	case in.Stock < 0:
		return in, domain.Invalid("stock", "must not be negative")
	}
	if in.Unit == "" {
		in.Unit = "pcs"
	}

	category, err := lookup(ctx, s.categories, "categoryId", in.CategoryID)
	if err != nil {
		return in, err
	}
	if category.Lifecycle.IsDeleted() {
		return in, inactive("categoryId", "category", in.CategoryID)
	}
	return in, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	in, err := s.validateProduct(ctx, in)
	if err != nil {
		return domain.Product{}, err
	}
	now := s.clock()
	p := domain.Product{
		Name:       in.Name,
		SKU:        in.SKU,
		CategoryID: in.CategoryID,
		Price:      in.Price,
		HPP:        in.HPP,
		Stock:      in.Stock,
		Unit:       in.Unit,
		Photo:      in.Photo,
		Barcode:    in.Barcode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id, err := s.products.Add(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = id
	return p, nil
}

// UpdateProduct edits the catalog fields of a product. Stock moves only
// through receipts, stock-outs and sales, so in.Stock is ignored. A changed
// unit cost is recorded as a manual cost history entry.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (domain.Product, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	existing, err := lookup(ctx, s.products, "id", id)
	if err != nil {
		return domain.Product{}, err
	}
	if existing.Lifecycle.IsDeleted() {
		return domain.Product{}, inactive("id", "product", id)
	}
	in.Stock = existing.Stock
	in, err = s.validateProduct(ctx, in)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	updated.Name = in.Name
	updated.SKU = in.SKU
	updated.CategoryID = in.CategoryID
	updated.Price = in.Price
	updated.HPP = in.HPP
	updated.Unit = in.Unit
	updated.Photo = in.Photo
	updated.Barcode = in.Barcode
	updated.UpdatedAt = s.clock()

	if existing.HPP == updated.HPP {
		if err := s.products.Put(ctx, id, updated); err != nil {
			return domain.Product{}, err
		}
		return updated, nil
	}
	return s.writeManualCost(ctx, existing, updated)
}

// SetProductCost overrides the unit cost of a product by hand.
func (s *Service) SetProductCost(ctx context.Context, productID int64, hpp domain.Money) (domain.Product, error) {
	if hpp < 0 {
		return domain.Product{}, domain.Invalid("hpp", "must not be negative")
	}
	s.writes.Lock()
	defer s.writes.Unlock()

	existing, err := lookup(ctx, s.products, "productId", productID)
	if err != nil {
		return domain.Product{}, err
	}
	if existing.Lifecycle.IsDeleted() {
		return domain.Product{}, inactive("productId", "product", productID)
	}
	if existing.HPP == hpp {
		return existing, nil
	}
	updated := existing
	updated.HPP = hpp
	updated.UpdatedAt = s.clock()
	return s.writeManualCost(ctx, existing, updated)
}

func (s *Service) writeManualCost(ctx context.Context, before domain.Product, after domain.Product) (domain.Product, error) {
	entry := domain.CostHistory{
		ProductID: before.ID,
		OldHPP:    before.HPP,
		NewHPP:    after.HPP,
		Source:    domain.CostSourceManual,
		Date:      after.UpdatedAt,
	}
	err := runSteps(ctx, s.logger, "set product cost", []step{
		{
			name: "append cost history",
			do: func(ctx context.Context) error {
				id, err := s.costHistory.Add(ctx, entry)
				entry.ID = id
				return err
			},
			undo: func(ctx context.Context) error { return s.costHistory.Delete(ctx, entry.ID) },
		},
		{
			name: "update product",
			do:   func(ctx context.Context) error { return s.products.Put(ctx, before.ID, after) },
		},
	})
	if err != nil {
		return domain.Product{}, err
	}
	return after, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	p, err := lookup(ctx, s.products, "id", id)
	if err != nil {
		return err
	}
	if p.Lifecycle.IsDeleted() {
		return nil
	}
	p.Lifecycle = domain.Deleted(s.clock())
	p.UpdatedAt = s.clock()
	return s.products.Put(ctx, id, p)
}

func (s *Service) Suppliers(ctx context.Context) ([]domain.Supplier, error) {
	all, err := s.suppliers.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(sp domain.Supplier) bool { return sp.Lifecycle.IsDeleted() }), nil
}

func (s *Service) Supplier(ctx context.Context, id int64) (domain.Supplier, error) {
	return s.suppliers.Get(ctx, id)
}

func (s *Service) CreateSupplier(ctx context.Context, in SupplierInput) (domain.Supplier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Supplier{}, domain.Invalid("name", "must not be empty")
	}
	sp := domain.Supplier{
		Name:      name,
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: s.clock(),
	}
	id, err := s.suppliers.Add(ctx, sp)
	if err != nil {
		return domain.Supplier{}, err
	}
	sp.ID = id
	return sp, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id int64, in SupplierInput) (domain.Supplier, error) {
	sp, err := lookup(ctx, s.suppliers, "id", id)
	if err != nil {
		return domain.Supplier{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Supplier{}, domain.Invalid("name", "must not be empty")
	}
	sp.Name = name
	sp.Phone = strings.TrimSpace(in.Phone)
	sp.Address = strings.TrimSpace(in.Address)
	sp.Notes = strings.TrimSpace(in.Notes)
	if err := s.suppliers.Put(ctx, id, sp); err != nil {
		return domain.Supplier{}, err
	}
	return sp, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id int64) error {
	sp, err := lookup(ctx, s.suppliers, "id", id)
	if err != nil {
		return err
	}
	if sp.Lifecycle.IsDeleted() {
		return nil
	}
	sp.Lifecycle = domain.Deleted(s.clock())
	return s.suppliers.Put(ctx, id, sp)
}

func (s *Service) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return s.paymentMethods.All(ctx)
}

func (s *Service) PaymentMethod(ctx context.Context, id int64) (domain.PaymentMethod, error) {
	return s.paymentMethods.Get(ctx, id)
}

func (s *Service) CreatePaymentMethod(ctx context.Context, in PaymentMethodInput) (domain.PaymentMethod, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.PaymentMethod{}, domain.Invalid("name", "must not be empty")
	}
	if !isPaymentCategory(in.Category) {
		return domain.PaymentMethod{}, domain.Invalid("category", fmt.Sprintf("unknown payment category %q", in.Category))
	}
	pm := domain.PaymentMethod{Name: name, Category: in.Category, IsDefault: in.IsDefault, CreatedAt: s.clock()}
	id, err := s.paymentMethods.Add(ctx, pm)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	pm.ID = id
	return pm, nil
}

// DeletePaymentMethod removes the record outright. Past transactions keep
// the dangling id.
func (s *Service) DeletePaymentMethod(ctx context.Context, id int64) error {
	if _, err := lookup(ctx, s.paymentMethods, "id", id); err != nil {
		return err
	}
	return s.paymentMethods.Delete(ctx, id)
}

func isPaymentCategory(category string) bool {
	switch category {
	case domain.PaymentCash, domain.PaymentTransfer, domain.PaymentEWallet, domain.PaymentQRIS:
		return true
	}
	return false
}
