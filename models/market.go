package models

import (
	"encoding/json"
	"time"
)

// DaftListing is a listing discovered by the Daft market scraper.
type DaftListing struct {
	DaftID        string          `json:"daft_id" db:"daft_id"`
	SellerID      string          `json:"seller_id" db:"seller_id"`
	Title         string          `json:"title" db:"title"`
	Price         string          `json:"price" db:"price"`
	Address       string          `json:"address" db:"address"`
	PropertyType  string          `json:"property_type" db:"property_type"`
	Bedrooms      string          `json:"bedrooms" db:"bedrooms"`
	Bathrooms     string          `json:"bathrooms" db:"bathrooms"`
	BERRating     string          `json:"ber_rating" db:"ber_rating"`
	Images        []string        `json:"image_urls" db:"image_urls"`
	Latitude      *float64        `json:"latitude" db:"latitude"`
	Longitude     *float64        `json:"longitude" db:"longitude"`
	PublishDate   string          `json:"published_date" db:"published_date"`
	Location      string          `json:"location" db:"location"`
	Fingerprint   string          `json:"fingerprint" db:"fingerprint"`
	RawData       json.RawMessage `json:"raw_data" db:"raw_data"`
	LastScrapedAt time.Time       `json:"last_scraped_at" db:"last_scraped_at"`
}

// DaftSeller is the agency advertising a Daft listing.
type DaftSeller struct {
	DaftID  string `json:"daft_id" db:"daft_id"`
	Name    string `json:"name" db:"name"`
	Phone   string `json:"phone" db:"phone"`
	Email   string `json:"email" db:"email"`
	Website string `json:"website" db:"website"`
	LogoURL string `json:"logo_url" db:"logo_url"`
}

// MarketScrapeResult summarises one Daft market scrape.
type MarketScrapeResult struct {
	Mode     string        `json:"mode"` // full, incremental
	Sellers  int           `json:"sellers"`
	Listings int           `json:"listings"`
	Added    int           `json:"added"`
	Updated  int           `json:"updated"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`

	CompletedAt time.Time `json:"completed_at"`
}
