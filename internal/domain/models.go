package domain

import (
	"encoding/json"
	"time"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
	Lifecycle Lifecycle `json:"-"`
}

func (c Category) MarshalJSON() ([]byte, error) {
	type alias Category
	return json.Marshal(struct {
		alias
		lifecycleWire
	}{alias(c), c.Lifecycle.wire()})
}

func (c *Category) UnmarshalJSON(data []byte) error {
	type alias Category
	payload := struct {
		*alias
		lifecycleWire
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.Lifecycle = payload.lifecycleWire.lifecycle()
	return nil
}

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	SKU        string    `json:"sku"`
	CategoryID int64     `json:"categoryId"`
	Price      Money     `json:"price"`
	HPP        Money     `json:"hpp"`
	Stock      int       `json:"stock"`
	Unit       string    `json:"unit"`
	Photo      string    `json:"photo,omitempty"`
	Barcode    string    `json:"barcode,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Lifecycle  Lifecycle `json:"-"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	type alias Product
	return json.Marshal(struct {
		alias
		lifecycleWire
	}{alias(p), p.Lifecycle.wire()})
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	payload := struct {
		*alias
		lifecycleWire
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	p.Lifecycle = payload.lifecycleWire.lifecycle()
	return nil
}

type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	Lifecycle Lifecycle `json:"-"`
}

func (s Supplier) MarshalJSON() ([]byte, error) {
	type alias Supplier
	return json.Marshal(struct {
		alias
		lifecycleWire
	}{alias(s), s.Lifecycle.wire()})
}

func (s *Supplier) UnmarshalJSON(data []byte) error {
	type alias Supplier
	payload := struct {
		*alias
		lifecycleWire
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	s.Lifecycle = payload.lifecycleWire.lifecycle()
	return nil
}

type StockIn struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"productId"`
	SupplierID int64     `json:"supplierId"`
	Quantity   int       `json:"quantity"`
	BuyPrice   Money     `json:"buyPrice"`
	TotalPrice Money     `json:"totalPrice"`
	Date       time.Time `json:"date"`
	Notes      string    `json:"notes"`
}

// Stock-out reasons offered to the cashier. Any non-empty reason is accepted.
const (
	ReasonDamaged        = "Rusak"
	ReasonLost           = "Hilang"
	ReasonExpired        = "Kadaluarsa"
	ReasonSupplierReturn = "Retur ke Supplier"
	ReasonOwnUse         = "Pemakaian Sendiri"
	ReasonOther          = "Lainnya"
)

var StockOutReasons = []string{
	ReasonDamaged,
	ReasonLost,
	ReasonExpired,
	ReasonSupplierReturn,
	ReasonOwnUse,
	ReasonOther,
}

type StockOut struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	Date      time.Time `json:"date"`
	Notes     string    `json:"notes"`
}

type CostSource string

const (
	CostSourceStockIn CostSource = "stock_in"
	CostSourceManual  CostSource = "manual"
)

type CostHistory struct {
	ID        int64      `json:"id"`
	ProductID int64      `json:"productId"`
	OldHPP    Money      `json:"oldHpp"`
	NewHPP    Money      `json:"newHpp"`
	Source    CostSource `json:"source"`
	Date      time.Time  `json:"date"`
}

// Payment method categories.
const (
	PaymentCash     = "tunai"
	PaymentTransfer = "transfer"
	PaymentEWallet  = "e-wallet"
	PaymentQRIS     = "qris"
)

type PaymentMethod struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

type Transaction struct {
	ID              int64        `json:"id"`
	Subtotal        Money        `json:"subtotal"`
	DiscountType    DiscountType `json:"discountType"`
	DiscountValue   float64      `json:"discountValue"`
	DiscountAmount  Money        `json:"discountAmount"`
	Total           Money        `json:"total"`
	PaymentMethodID int64        `json:"paymentMethodId"`
	PaymentAmount   Money        `json:"paymentAmount"`
	Change          Money        `json:"change"`
	Profit          Money        `json:"profit"`
	Date            time.Time    `json:"date"`
	ReceiptNumber   string       `json:"receiptNumber"`
	Remarks         string       `json:"remarks,omitempty"`
}

func (t Transaction) Discount() Discount {
	return Discount{Type: t.DiscountType, Value: t.DiscountValue}
}

type TransactionItem struct {
	ID             int64        `json:"id"`
	TransactionID  int64        `json:"transactionId"`
	ProductID      int64        `json:"productId"`
	ProductName    string       `json:"productName"`
	Quantity       int          `json:"quantity"`
	Price          Money        `json:"price"`
	HPP            Money        `json:"hpp"`
	DiscountType   DiscountType `json:"discountType"`
	DiscountValue  float64      `json:"discountValue"`
	DiscountAmount Money        `json:"discountAmount"`
	Subtotal       Money        `json:"subtotal"`
}

type StoreSettings struct {
	ID             int64      `json:"id"`
	StoreName      string     `json:"storeName"`
	Address        string     `json:"address"`
	Phone          string     `json:"phone"`
	ReceiptFooter  string     `json:"receiptFooter"`
	OnboardingDone bool       `json:"onboardingDone"`
	LastBackupAt   *time.Time `json:"lastBackupAt"`
	ThemeColor     string     `json:"themeColor,omitempty"`
	DeviceID       string     `json:"deviceId"`
}

// Sale is a committed transaction together with its line items.
type Sale struct {
	Transaction Transaction       `json:"transaction"`
	Items       []TransactionItem `json:"items"`
}

type SaleDetail struct {
	Sale
	PaymentMethod *PaymentMethod    `json:"paymentMethod,omitempty"`
	Products      map[int64]Product `json:"products"`
}
