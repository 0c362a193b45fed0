package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/nectar/internal/clock"
	"github.com/smallbiznis/nectar/internal/store/domain"
	"github.com/smallbiznis/nectar/internal/store/repository"
	"github.com/smallbiznis/nectar/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Store{},
		&domain.Coupon{},
		&domain.PartialURL{},
		&domain.ScrapedDomain{},
		&domain.CouponUsageReport{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  repository.Provide(),
	})

	return svc, db, fakeClock
}

func seedStoreWithCoupon(t *testing.T, db *gorm.DB, storeID, code string) int64 {
	t.Helper()

	repo := repository.Provide()
	store := &domain.Store{StoreID: storeID, Domain: storeID + ".com", Name: "Store", Country: "US", Active: true}
	require.NoError(t, repo.UpsertStore(context.Background(), db, store,
		[]domain.Coupon{{Code: code}}, nil))

	var coupon domain.Coupon
	require.NoError(t, db.Where("store_id = ?", storeID).First(&coupon).Error)
	return coupon.ID
}

func TestGetStoreNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetStore(context.Background(), domain.GetStoreRequest{StoreID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetStoreBlankID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetStore(context.Background(), domain.GetStoreRequest{StoreID: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestGetStoreReturnsChildren(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedStoreWithCoupon(t, db, "s1", "SAVE10")

	resp, err := svc.GetStore(context.Background(), domain.GetStoreRequest{StoreID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, resp.Store)
	assert.Equal(t, "s1", resp.Store.StoreID)
	require.Len(t, resp.Coupons, 1)
	assert.Equal(t, "SAVE10", resp.Coupons[0].Code)
	assert.NotNil(t, resp.PartialURLs)
}

func TestListStoresNormalizesPagination(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedStoreWithCoupon(t, db, "s1", "SAVE10")

	resp, err := svc.ListStores(context.Background(), domain.ListStoresRequest{
		Pagination: pagination.Pagination{Page: 0, PerPage: 100000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Pagination.Page)
	assert.Equal(t, 250, resp.Pagination.PerPage)
	assert.Equal(t, int64(1), resp.Pagination.Total)
	require.Len(t, resp.Stores, 1)
}

func TestReportCouponUsageValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	worked := true

	_, err := svc.ReportCouponUsage(context.Background(), domain.ReportCouponUsageRequest{
		CouponID: 0, StoreID: "s1", Code: "X", Worked: &worked,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.ReportCouponUsage(context.Background(), domain.ReportCouponUsageRequest{
		CouponID: 1, StoreID: "", Code: "X", Worked: &worked,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.ReportCouponUsage(context.Background(), domain.ReportCouponUsageRequest{
		CouponID: 1, StoreID: "s1", Code: "X", Worked: nil,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestReportCouponUsageUnknownCoupon(t *testing.T) {
	svc, _, _ := newTestService(t)
	worked := true

	_, err := svc.ReportCouponUsage(context.Background(), domain.ReportCouponUsageRequest{
		CouponID: 999, StoreID: "s1", Code: "X", Worked: &worked,
	})
	assert.ErrorIs(t, err, domain.ErrCouponNotExists)
}

func TestReportCouponUsageStoreMismatch(t *testing.T) {
	svc, db, _ := newTestService(t)
	couponID := seedStoreWithCoupon(t, db, "s1", "SAVE10")
	worked := true

	_, err := svc.ReportCouponUsage(context.Background(), domain.ReportCouponUsageRequest{
		CouponID: couponID, StoreID: "other", Code: "SAVE10", Worked: &worked,
	})
	assert.ErrorIs(t, err, domain.ErrStoreMismatch)
}

func TestReportCouponUsagePersists(t *testing.T) {
	svc, db, fakeClock := newTestService(t)
	couponID := seedStoreWithCoupon(t, db, "s1", "SAVE10")
	worked := true
	saved := 7.5

	report, err := svc.ReportCouponUsage(context.Background(), domain.ReportCouponUsageRequest{
		CouponID:    couponID,
		StoreID:     "s1",
		Code:        " SAVE10 ",
		Worked:      &worked,
		AmountSaved: &saved,
	})
	require.NoError(t, err)
	assert.NotZero(t, report.ID)
	assert.Equal(t, "SAVE10", report.Code)
	assert.Equal(t, fakeClock.Now().UnixMilli(), report.ReportedAt)

	reports, err := svc.CouponUsage(context.Background(), domain.CouponUsageRequest{CouponID: couponID})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Worked)
	require.NotNil(t, reports[0].AmountSaved)
	assert.InDelta(t, 7.5, *reports[0].AmountSaved, 0.001)

	later := time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC)
	fakeClock.Set(later)
	second, err := svc.ReportCouponUsage(context.Background(), domain.ReportCouponUsageRequest{
		CouponID: couponID, StoreID: "s1", Code: "SAVE10", Worked: &worked,
	})
	require.NoError(t, err)
	assert.Equal(t, later.UnixMilli(), second.ReportedAt)
	assert.NotEqual(t, report.ID, second.ID)
}

func TestCouponUsageUnknownCoupon(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CouponUsage(context.Background(), domain.CouponUsageRequest{CouponID: 42})
	assert.ErrorIs(t, err, domain.ErrCouponNotExists)
}
