package storage

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the storefront department a product belongs to.
type Category string

const (
	CategoryMenswear    Category = "menswear"
	CategoryWomenswear  Category = "womenswear"
	CategoryKids        Category = "kids"
	CategoryAccessories Category = "accessories"
)

// Categories lists the closed set of valid categories in display order.
func Categories() []Category {
	return []Category{CategoryMenswear, CategoryWomenswear, CategoryKids, CategoryAccessories}
}

// ParseCategory validates a raw token against the closed category set.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ProductType narrows a product within its category.
type ProductType string

const (
	TypeShirt      ProductType = "shirt"
	TypePants      ProductType = "pants"
	TypeDress      ProductType = "dress"
	TypeJacket     ProductType = "jacket"
	TypeShoes      ProductType = "shoes"
	TypeSportswear ProductType = "sportswear"
	TypeSuit       ProductType = "suit"
	TypeAccessory  ProductType = "accessory"
)

// ProductTypes lists the closed set of valid product types in display order.
func ProductTypes() []ProductType {
	return []ProductType{
		TypeShirt, TypePants, TypeDress, TypeJacket,
		TypeShoes, TypeSportswear, TypeSuit, TypeAccessory,
	}
}

// ParseProductType validates a raw token against the closed type set.
func ParseProductType(s string) (ProductType, bool) {
	for _, t := range ProductTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// SizeList is an ordered list of sizes stored as a comma-joined string.
type SizeList []string

// Value implements driver.Valuer.
func (s SizeList) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

// Scan implements sql.Scanner.
func (s *SizeList) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("sizes: cannot scan %T", src)
	}
	if raw == "" {
		*s = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(SizeList, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*s = out
	return nil
}

// Product is a storefront item. Products are created whole by the add-product
// wizard and never mutated in place.
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	Category    Category        `db:"category" json:"category"`
	ProductType ProductType     `db:"product_type" json:"product_type"`
	Sizes       SizeList        `db:"sizes" json:"sizes"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// OrderStatus tracks order lifecycle.
type OrderStatus string

// StatusPending is the initial status of every incoming order.
const StatusPending OrderStatus = "pending"

// Order is a purchase received from the storefront web app.
// Immutable after creation in this service's scope.
type Order struct {
	ID         int64           `db:"id" json:"id"`
	UserID     int64           `db:"user_id" json:"user_id"`
	Username   string          `db:"username" json:"username"`
	Items      string          `db:"products" json:"products"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	Status     OrderStatus     `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// User is a Telegram identity seen by the bot, upserted on every interaction.
type User struct {
	UserID    int64  `db:"user_id" json:"user_id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	IsAdmin   bool   `db:"is_admin" json:"is_admin"`
}
