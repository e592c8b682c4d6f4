package masterdata

import (
	"context"
	"errors"
	"time"
)

// Vehicle represents a transport vehicle in masterdata.
type Vehicle struct {
	ID           string
	CompanyID    string
	Registration string
	Capacity     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks vehicle invariants.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return errors.New("vehicle: empty id")
	}
	if v.CompanyID == "" {
		return errors.New("vehicle: empty company id")
	}
	if v.Registration == "" {
		return errors.New("vehicle: empty registration")
	}
	if v.Capacity < 0 {
		return errors.New("vehicle: negative capacity")
	}
	return nil
}

// VehicleRepository manages vehicle persistence.
type VehicleRepository interface {
	Get(ctx context.Context, id string) (*Vehicle, error)
	ListByCompany(ctx context.Context, companyID string) ([]Vehicle, error)
	Save(ctx context.Context, vehicle *Vehicle) error
}
