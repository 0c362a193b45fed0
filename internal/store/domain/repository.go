package domain

import (
	"context"

	"github.com/smallbiznis/nectar/pkg/db/pagination"
	"gorm.io/gorm"
)

// StoreSummary is a store row joined with its coupon count, as returned
// by store listings and exports.
type StoreSummary struct {
	StoreID     string `json:"store_id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Country     string `json:"country"`
	URL         string `json:"url"`
	Active      bool   `json:"active"`
	Supported   bool   `json:"supported"`
	Shoppers30d int64  `json:"shoppers_30d"`
	Created     int64  `json:"created"`
	Updated     int64  `json:"updated"`
	CouponCount int64  `json:"coupon_count"`

	// Populated by exports only.
	PartialURL string `json:"partial_url,omitempty"`
	LogoURL    string `json:"logo_url,omitempty"`
}

// CouponWithUsage is a coupon joined with aggregates over its usage reports.
type CouponWithUsage struct {
	Coupon
	UsageReportCount int64    `json:"usage_report_count"`
	WorkedCount      int64    `json:"worked_count"`
	FailedCount      int64    `json:"failed_count"`
	AvgSavings       *float64 `json:"avg_savings"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type RecentStore struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	URL     string `json:"url"`
	Updated int64  `json:"updated"`
}

type Stats struct {
	TotalStores      int64          `json:"total_stores"`
	ActiveStores     int64          `json:"active_stores"`
	DomainsScraped   int64          `json:"domains_scraped"`
	TotalCoupons     int64          `json:"total_coupons"`
	StoresWithCoupon int64          `json:"stores_with_coupons"`
	TopCountries     []CountryCount `json:"top_countries"`
	RecentStores     []RecentStore  `json:"recent_stores"`
}

type Repository interface {
	UpsertStore(ctx context.Context, db *gorm.DB, store *Store, coupons []Coupon, partials []PartialURL) error
	MarkScraped(ctx context.Context, db *gorm.DB, domain string, storeCount int64, scrapedAt int64) error
	IsScraped(ctx context.Context, db *gorm.DB, domain string) (bool, error)

	List(ctx context.Context, db *gorm.DB, filter ListStoresFilter, page pagination.Pagination) ([]StoreSummary, int64, error)
	FindByID(ctx context.Context, db *gorm.DB, storeID string) (*Store, error)
	CouponsByStore(ctx context.Context, db *gorm.DB, storeID string) ([]CouponWithUsage, error)
	PartialURLsByStore(ctx context.Context, db *gorm.DB, storeID string) ([]PartialURL, error)
	ExportAll(ctx context.Context, db *gorm.DB) ([]Store, error)
	ExportSummaries(ctx context.Context, db *gorm.DB) ([]StoreSummary, error)

	Stats(ctx context.Context, db *gorm.DB) (*Stats, error)
	Countries(ctx context.Context, db *gorm.DB) ([]CountryCount, error)

	CouponByID(ctx context.Context, db *gorm.DB, id int64) (*Coupon, error)
	InsertUsageReport(ctx context.Context, db *gorm.DB, report *CouponUsageReport) error
	UsageReportsByCoupon(ctx context.Context, db *gorm.DB, couponID int64) ([]CouponUsageReport, error)
}
