package reconciliation

import "errors"

// ErrEmptyCompanyID is returned when the company id is missing.
var ErrEmptyCompanyID = errors.New("reconciliation: empty company id")

// ErrEmptyAgencyID is returned when the agency id is missing.
var ErrEmptyAgencyID = errors.New("reconciliation: empty agency id")

// ErrInvalidWindow is returned when the report window is empty or inverted.
var ErrInvalidWindow = errors.New("reconciliation: invalid time window")

// ErrPartialData is returned when a source snapshot could not be read
// completely. The whole report fails rather than truncating silently.
var ErrPartialData = errors.New("reconciliation: partial data")

// ErrReportNotFound is returned when a stored report does not exist.
var ErrReportNotFound = errors.New("reconciliation: report not found")
