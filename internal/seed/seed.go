// Package seed writes the default records a new ledger starts with.
package seed

import (
	"context"
	"errors"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/store"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed demo.yaml
var demoYAML []byte

type Defaults struct {
	Categories []struct {
		Name  string `yaml:"name"`
		Color string `yaml:"color"`
		Icon  string `yaml:"icon"`
	} `yaml:"categories"`
	PaymentMethods []struct {
		Name      string `yaml:"name"`
		Category  string `yaml:"category"`
		IsDefault bool   `yaml:"isDefault"`
	} `yaml:"paymentMethods"`
	Settings struct {
		StoreName     string `yaml:"storeName"`
		Address       string `yaml:"address"`
		Phone         string `yaml:"phone"`
		ReceiptFooter string `yaml:"receiptFooter"`
	} `yaml:"settings"`
}

type Demo struct {
	Suppliers []struct {
		Name    string `yaml:"name"`
		Phone   string `yaml:"phone"`
		Address string `yaml:"address"`
		Notes   string `yaml:"notes"`
	} `yaml:"suppliers"`
	Products []struct {
		SKU      string `yaml:"sku"`
		Name     string `yaml:"name"`
		Category string `yaml:"category"`
		Price    int64  `yaml:"price"`
		HPP      int64  `yaml:"hpp"`
		Stock    int    `yaml:"stock"`
		Unit     string `yaml:"unit"`
	} `yaml:"products"`
}

func LoadDefaults() (Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		return Defaults{}, fmt.Errorf("parse defaults: %w", err)
	}
	return d, nil
}

func LoadDemo() (Demo, error) {
	var d Demo
	if err := yaml.Unmarshal(demoYAML, &d); err != nil {
		return Demo{}, fmt.Errorf("parse demo data: %w", err)
	}
	return d, nil
}

// Apply fills empty categories, payment methods and settings with defaults.
// Collections that already hold records are left alone, so Apply is safe on
// every start.
func Apply(ctx context.Context, b store.Backend, now time.Time) error {
	d, err := LoadDefaults()
	if err != nil {
		return err
	}
	now = now.UTC()

	categories := store.NewTable[domain.Category](b, store.Categories)
	if n, err := categories.Count(ctx); err != nil {
		return err
	} else if n == 0 {
		for _, c := range d.Categories {
			if _, err := categories.Add(ctx, domain.Category{Name: c.Name, Color: c.Color, Icon: c.Icon, CreatedAt: now}); err != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, err)
			}
		}
	}

	methods := store.NewTable[domain.PaymentMethod](b, store.PaymentMethods)
	if n, err := methods.Count(ctx); err != nil {
		return err
	} else if n == 0 {
		for _, m := range d.PaymentMethods {
			pm := domain.PaymentMethod{Name: m.Name, Category: m.Category, IsDefault: m.IsDefault, CreatedAt: now}
			if _, err := methods.Add(ctx, pm); err != nil {
				return fmt.Errorf("seed payment method %s: %w", m.Name, err)
			}
		}
	}

	settings := store.NewTable[domain.StoreSettings](b, store.StoreSettings)
	current, err := settings.First(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, err := settings.Add(ctx, domain.StoreSettings{
			StoreName:     d.Settings.StoreName,
			Address:       d.Settings.Address,
			Phone:         d.Settings.Phone,
			ReceiptFooter: d.Settings.ReceiptFooter,
			DeviceID:      NewDeviceID(),
		})
		if err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
	case err != nil:
		return err
	case strings.TrimSpace(current.DeviceID) == "":
		current.DeviceID = NewDeviceID()
		if err := settings.Put(ctx, current.ID, current); err != nil {
			return fmt.Errorf("assign device id: %w", err)
		}
	}
	return nil
}

// ApplyDemo adds the demo suppliers and products when the catalog is empty.
// Products are filed under the default category of the same name.
func ApplyDemo(ctx context.Context, b store.Backend, now time.Time) error {
	d, err := LoadDemo()
	if err != nil {
		return err
	}
	now = now.UTC()

	products := store.NewTable[domain.Product](b, store.Products)
	if n, err := products.Count(ctx); err != nil || n > 0 {
		return err
	}

	categories, err := store.NewTable[domain.Category](b, store.Categories).All(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]int64, len(categories))
	for _, c := range categories {
		byName[c.Name] = c.ID
	}

	suppliers := store.NewTable[domain.Supplier](b, store.Suppliers)
	for _, s := range d.Suppliers {
		if _, err := suppliers.Add(ctx, domain.Supplier{Name: s.Name, Phone: s.Phone, Address: s.Address, Notes: s.Notes, CreatedAt: now}); err != nil {
			return fmt.Errorf("seed supplier %s: %w", s.Name, err)
		}
	}

	for _, p := range d.Products {
		categoryID, ok := byName[p.Category]
		if !ok {
			return fmt.Errorf("seed product %s: unknown category %q", p.SKU, p.Category)
		}
		_, err := products.Add(ctx, domain.Product{
			Name:       p.Name,
			SKU:        p.SKU,
			CategoryID: categoryID,
			Price:      domain.Money(p.Price),
			HPP:        domain.Money(p.HPP),
			Stock:      p.Stock,
			Unit:       p.Unit,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.SKU, err)
		}
	}
	return nil
}

// NewDeviceID returns a fresh per-install identifier.
func NewDeviceID() string {
	return uuid.Must(uuid.NewV7()).String()
}
