package model

import "time"

// Label is the summary of one FDA drug label.
type Label struct {
	BrandName           string `json:"brand_name"`
	GenericName         string `json:"generic_name"`
	Purpose             string `json:"purpose"`
	Warnings            string `json:"warnings"`
	IndicationsAndUsage string `json:"indications_and_usage"`
}

// Entry is a cached label with its expiry.
type Entry struct {
	Name      string    `json:"name"`
	Label     Label     `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
