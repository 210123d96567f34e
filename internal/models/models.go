package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop/internal/cart"
)

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	Title       string          `gorm:"not null"                    json:"title"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Description string          `gorm:"not null"                    json:"description"`
	ImageURL    string          `gorm:"not null"                    json:"imageUrl"`
	UserID      uuid.UUID       `gorm:"type:uuid;index;not null"    json:"userId"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"  json:"id"`
	Email            string     `gorm:"uniqueIndex;not null"  json:"email"`
	PasswordHash     string     `gorm:"not null"              json:"-"`
	ResetToken       *string    `gorm:"index"                 json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
	Cart             cart.Cart  `gorm:"type:jsonb;not null"   json:"cart"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ProductSnapshot is a by-value copy of a product at checkout time.
type ProductSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageUrl"`
	UserID      uuid.UUID       `json:"userId"`
}

func SnapshotOf(p Product) ProductSnapshot {
	return ProductSnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		UserID:      p.UserID,
	}
}

type LineItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		l = LineItems{}
	}
	b, err := json.Marshal([]LineItem(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *LineItems) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("line items: unsupported scan type %T", src)
	}
	return json.Unmarshal(data, (*[]LineItem)(l))
}

type OrderUser struct {
	Email  string    `gorm:"column:user_email;not null"              json:"email"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;index;not null" json:"userId"`
}

// Order is written once at checkout and never updated.
type Order struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"              json:"id"`
	User      OrderUser `gorm:"embedded"                          json:"user"`
	Items     LineItems `gorm:"type:jsonb;not null"               json:"products"`
	CreatedAt time.Time `gorm:"index"                             json:"createdAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

func (o Order) OwnedBy(userID uuid.UUID) bool {
	return o.User.UserID == userID
}

func All() []any {
	return []any{&Product{}, &User{}, &Order{}}
}
