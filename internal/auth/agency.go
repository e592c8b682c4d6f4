package auth

import (
	"context"
	"database/sql"
	"errors"

	masterdatarepo "freight-cloud/internal/masterdata/infrastructure/postgres"
)

var (
	// ErrCompanyMismatch indicates resource belongs to a different company.
	ErrCompanyMismatch = errors.New("company mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// AgencyCompanyChecker validates agency company ownership.
type AgencyCompanyChecker interface {
	EnsureAgencyCompany(ctx context.Context, companyID, agencyID string) error
}

// AgencyChecker checks agency ownership using masterdata.
type AgencyChecker struct {
	repo *masterdatarepo.AgencyRepository
}

// NewAgencyChecker constructs an AgencyChecker.
func NewAgencyChecker(db *sql.DB) *AgencyChecker {
	if db == nil {
		return nil
	}
	return &AgencyChecker{repo: masterdatarepo.NewAgencyRepository(db)}
}

// EnsureAgencyCompany verifies agency belongs to company.
func (c *AgencyChecker) EnsureAgencyCompany(ctx context.Context, companyID, agencyID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if companyID == "" || agencyID == "" {
		return nil
	}
	agency, err := c.repo.Get(ctx, agencyID)
	if err != nil {
		return err
	}
	if agency == nil {
		return ErrNotFound
	}
	if agency.CompanyID != companyID {
		return ErrCompanyMismatch
	}
	return nil
}
