package masterdata

import (
	"context"
	"errors"
	"time"
)

// Agency represents a freight agency in masterdata.
type Agency struct {
	ID        string
	CompanyID string
	Name      string
	City      string
	Region    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks agency invariants.
func (a Agency) Validate() error {
	if a.ID == "" {
		return errors.New("agency: empty id")
	}
	if a.CompanyID == "" {
		return errors.New("agency: empty company id")
	}
	if a.Name == "" {
		return errors.New("agency: empty name")
	}
	return nil
}

// AgencyRepository manages agency persistence.
type AgencyRepository interface {
	Get(ctx context.Context, id string) (*Agency, error)
	ListByCompany(ctx context.Context, companyID string) ([]Agency, error)
	Save(ctx context.Context, agency *Agency) error
}
