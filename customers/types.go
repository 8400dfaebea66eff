// Package customers holds customer records and the purchase and service
// counters that sales and service tickets maintain.
package customers

import (
	"context"
	"time"
)

type Customer struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	Address      string
	Purchases    int
	ServiceCount int
	CreatedAt    time.Time
	CreatedBy    string
}

// Activity is the number of sales plus service tickets referencing c.
func (c Customer) Activity() int {
	return c.Purchases + c.ServiceCount
}

// Details is the input for AddCustomer and UpdateCustomer.
type Details struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,phone"`
	Address string `json:"address"`
}

type Stats struct {
	Total  int
	Active int
	Top    []Customer // at most TopCustomers, most active first
}

// TopCustomers is the size of Stats.Top.
const TopCustomers = 5

// Repository persists customers. GetCustomer returns *generic.NotFoundError
// for unknown ids.
type Repository interface {
	GetCustomer(ctx context.Context, id string) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	SaveCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id string) error
}
