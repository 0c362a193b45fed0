package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/nectar/pkg/db/pagination"
)

type ListStoresRequest struct {
	pagination.Pagination
	Search     string `form:"search"`
	Country    string `form:"country"`
	ActiveOnly bool   `form:"active_only"`
}

type ListStoresFilter struct {
	Search     string
	Country    string
	ActiveOnly bool
}

type ListStoresResponse struct {
	Stores     []StoreSummary      `json:"stores"`
	Pagination pagination.PageInfo `json:"pagination"`
}

type GetStoreRequest struct {
	StoreID string
}

type GetStoreResponse struct {
	Store       *Store            `json:"store"`
	Coupons     []CouponWithUsage `json:"coupons"`
	PartialURLs []PartialURL      `json:"partial_urls"`
}

type ReportCouponUsageRequest struct {
	CouponID    int64    `json:"coupon_id" binding:"required"`
	StoreID     string   `json:"store_id" binding:"required"`
	Code        string   `json:"code" binding:"required"`
	Worked      *bool    `json:"worked" binding:"required"`
	AmountSaved *float64 `json:"amount_saved"`
	AmountSpent *float64 `json:"amount_spent"`
	Notes       string   `json:"notes"`
}

type CouponUsageRequest struct {
	CouponID int64
}

type Service interface {
	ListStores(context.Context, ListStoresRequest) (ListStoresResponse, error)
	GetStore(context.Context, GetStoreRequest) (GetStoreResponse, error)
	Stats(context.Context) (*Stats, error)
	Countries(context.Context) ([]CountryCount, error)
	ReportCouponUsage(context.Context, ReportCouponUsageRequest) (*CouponUsageReport, error)
	CouponUsage(context.Context, CouponUsageRequest) ([]CouponUsageReport, error)
	ExportStores(context.Context) ([]Store, error)
	ExportSummaries(context.Context) ([]StoreSummary, error)
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidCoupon   = errors.New("invalid_coupon")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrStoreMismatch   = errors.New("store_mismatch")
	ErrCouponNotExists = errors.New("coupon_not_found")
)
