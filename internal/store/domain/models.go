package domain

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Store is a single merchant record. Timestamps are epoch milliseconds as
// delivered by the upstream catalog.
type Store struct {
	StoreID               string         `gorm:"column:store_id;primaryKey" json:"store_id"`
	Domain                string         `gorm:"column:domain;index" json:"domain"`
	PartialURL            string         `gorm:"column:partial_url" json:"partial_url"`
	Name                  string         `gorm:"column:name" json:"name"`
	Label                 string         `gorm:"column:label" json:"label"`
	Country               string         `gorm:"column:country;index" json:"country"`
	URL                   string         `gorm:"column:url" json:"url"`
	LogoURL               string         `gorm:"column:logo_url" json:"logo_url"`
	Active                bool           `gorm:"column:active;index" json:"active"`
	Supported             bool           `gorm:"column:supported" json:"supported"`
	SupportStage          string         `gorm:"column:support_stage" json:"support_stage"`
	Created               int64          `gorm:"column:created" json:"created"`
	Updated               int64          `gorm:"column:updated" json:"updated"`
	Checked               int64          `gorm:"column:checked" json:"checked"`
	Score                 int64          `gorm:"column:score" json:"score"`
	Shoppers24h           int64          `gorm:"column:shoppers_24h" json:"shoppers_24h"`
	Shoppers30d           int64          `gorm:"column:shoppers_30d" json:"shoppers_30d"`
	ShoppersChange        int64          `gorm:"column:shoppers_change" json:"shoppers_change"`
	NumSavings24h         int64          `gorm:"column:num_savings_24h" json:"num_savings_24h"`
	NumSavings30d         int64          `gorm:"column:num_savings_30d" json:"num_savings_30d"`
	AvgSavings24h         float64        `gorm:"column:avg_savings_24h" json:"avg_savings_24h"`
	AvgSavings30d         float64        `gorm:"column:avg_savings_30d" json:"avg_savings_30d"`
	Metadata              datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	AffiliateURL          string         `gorm:"column:affiliate_url" json:"affiliate_url"`
	AffiliateRestrictions string         `gorm:"column:affiliate_restrictions" json:"affiliate_restrictions"`
	UGCAllowed            bool           `gorm:"column:ugc_allowed" json:"ugc_allowed"`
	FreeShippingThreshold *float64       `gorm:"column:free_shipping_threshold" json:"free_shipping_threshold,omitempty"`
	ForceJSRedirect       bool           `gorm:"column:force_js_redirect" json:"force_js_redirect"`
	LaunchpadPathname     string         `gorm:"column:launchpad_pathname" json:"launchpad_pathname"`
	RawJSON               datatypes.JSON `gorm:"column:raw_json" json:"raw_json,omitempty"`
}

func (Store) TableName() string { return "stores" }

type Coupon struct {
	ID                     int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StoreID                string         `gorm:"column:store_id;index" json:"store_id"`
	Code                   string         `gorm:"column:code" json:"code"`
	DealID                 string         `gorm:"column:deal_id" json:"deal_id"`
	Description            string         `gorm:"column:description" json:"description"`
	Created                int64          `gorm:"column:created" json:"created"`
	Expires                int64          `gorm:"column:expires" json:"expires"`
	Exclusive              bool           `gorm:"column:exclusive" json:"exclusive"`
	Hidden                 bool           `gorm:"column:hidden" json:"hidden"`
	Restrictions           string         `gorm:"column:restrictions" json:"restrictions"`
	Rank                   int64          `gorm:"column:rank" json:"rank"`
	AppliedAccCount        int64          `gorm:"column:applied_acc_count" json:"applied_acc_count"`
	AppliedAccLastTS       int64          `gorm:"column:applied_acc_last_ts" json:"applied_acc_last_ts"`
	AppliedAccLastDiscount float64        `gorm:"column:applied_acc_last_discount" json:"applied_acc_last_discount"`
	URL                    string         `gorm:"column:url" json:"url"`
	MetaJSON               datatypes.JSON `gorm:"column:meta_json" json:"meta_json,omitempty"`
	SourcesJSON            datatypes.JSON `gorm:"column:sources_json" json:"sources_json,omitempty"`
	TagsJSON               datatypes.JSON `gorm:"column:tags_json" json:"tags_json,omitempty"`
}

func (Coupon) TableName() string { return "coupons" }

type PartialURL struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StoreID    string `gorm:"column:store_id;index" json:"store_id"`
	Domain     string `gorm:"column:domain" json:"domain"`
	PartialURL string `gorm:"column:partial_url" json:"partial_url"`
}

func (PartialURL) TableName() string { return "partial_urls" }

// ScrapedDomain marks a domain as already processed so later runs can
// resume without refetching it.
type ScrapedDomain struct {
	Domain     string `gorm:"column:domain;primaryKey" json:"domain"`
	ScrapedAt  int64  `gorm:"column:scraped_at" json:"scraped_at"`
	StoreCount int64  `gorm:"column:store_count" json:"store_count"`
}

func (ScrapedDomain) TableName() string { return "scraped_domains" }

type CouponUsageReport struct {
	ID          snowflake.ID `gorm:"column:id;primaryKey" json:"id"`
	CouponID    int64        `gorm:"column:coupon_id;not null;index" json:"coupon_id"`
	StoreID     string       `gorm:"column:store_id;not null;index" json:"store_id"`
	Code        string       `gorm:"column:code;not null;index" json:"code"`
	Worked      bool         `gorm:"column:worked;not null" json:"worked"`
	AmountSaved *float64     `gorm:"column:amount_saved" json:"amount_saved,omitempty"`
	AmountSpent *float64     `gorm:"column:amount_spent" json:"amount_spent,omitempty"`
	Notes       string       `gorm:"column:notes" json:"notes,omitempty"`
	ReportedAt  int64        `gorm:"column:reported_at;not null" json:"reported_at"`
}

func (CouponUsageReport) TableName() string { return "coupon_usage_reports" }
