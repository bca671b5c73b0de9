package customer

import (
	"context"
	"net/mail"
	"time"

	"github.com/xenking/kart-fulfillment/internal/domain/failure"
)

var (
	// ErrNotFound is returned when a requested customer does not exist.
	ErrNotFound = failure.New(failure.NotFound, "customer not found")
	// ErrMailTaken is returned when another customer already uses the address.
	ErrMailTaken = failure.New(failure.Conflict, "mail address already registered")
	// ErrHasOrders is returned when deleting a customer whose carts became orders.
	ErrHasOrders = failure.New(failure.Conflict, "customer has placed orders")
	// ErrEmptyName is returned when a customer has no name.
	ErrEmptyName = failure.New(failure.BadRequest, "name is required")
	// ErrInvalidMail is returned when mail is not a single plain address.
	ErrInvalidMail = failure.New(failure.BadRequest, "mail must be a valid address")
	// ErrInvalidRole is returned for roles other than admin and client.
	ErrInvalidRole = failure.New(failure.BadRequest, "role must be admin or client")
)

// Role tags what a customer account may do.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

// Customer is an account that owns carts.
type Customer struct {
	ID        string
	Name      string
	Mail      string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the fields an administrator may set.
func (c *Customer) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if addr, err := mail.ParseAddress(c.Mail); err != nil || addr.Address != c.Mail {
		return ErrInvalidMail
	}
	if !c.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

// Patch is the input of an update. Nil fields are left unchanged.
type Patch struct {
	Name *string
	Mail *string
	Role *Role
}

// Apply copies the set fields of p onto c.
func (c *Customer) Apply(p Patch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Mail != nil {
		c.Mail = *p.Mail
	}
	if p.Role != nil {
		c.Role = *p.Role
	}
}

// Reader provides customer lookups.
type Reader interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}

// Repository is the customer persistence façade.
type Repository interface {
	Reader
	List(ctx context.Context) ([]Customer, error)
	// Create and Update return ErrMailTaken when another customer holds
	// the address.
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
	// Delete removes the customer with its open carts. It returns
	// ErrHasOrders when any of their carts became an order.
	Delete(ctx context.Context, id string) error
}
