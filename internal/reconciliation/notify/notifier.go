package notify

import "context"

// AlertMessage represents a notification payload.
type AlertMessage struct {
	CompanyID         string            `json:"company_id"`
	AgencyID          string            `json:"agency_id"`
	Window            string            `json:"window"`
	ReportID          string            `json:"report_id"`
	ReportURL         string            `json:"report_url"`
	Summary           map[string]any    `json:"summary"`
	RecommendedAction string            `json:"recommended_action"`
	Meta              map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}
