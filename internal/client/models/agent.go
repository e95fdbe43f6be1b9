package models

import "time"

// Agent is a marketplace agent listing.
type Agent struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Slug          string    `json:"slug"`
	Version       string    `json:"version"`
	Status        string    `json:"status"`
	Category      string    `json:"category"`
	PricingModel  string    `json:"pricing_model"`
	PricePerCall  float64   `json:"price_per_call"`
	AverageRating float64   `json:"average_rating"`
	TotalCalls    int64     `json:"total_calls"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
