package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/nectar/internal/store/domain"
	"github.com/smallbiznis/nectar/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// UpsertStore replaces the store row and its child coupon and partial URL
// rows in a single transaction, so a re-scrape never leaves stale coupons.
func (r *repo) UpsertStore(ctx context.Context, db *gorm.DB, store *domain.Store, coupons []domain.Coupon, partials []domain.PartialURL) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(store).Error; err != nil {
			return err
		}

		if err := tx.Where("store_id = ?", store.StoreID).Delete(&domain.Coupon{}).Error; err != nil {
			return err
		}
		for i := range coupons {
			coupons[i].ID = 0
			coupons[i].StoreID = store.StoreID
		}
		if len(coupons) > 0 {
			if err := tx.Create(&coupons).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("store_id = ?", store.StoreID).Delete(&domain.PartialURL{}).Error; err != nil {
			return err
		}
		for i := range partials {
			partials[i].ID = 0
			partials[i].StoreID = store.StoreID
		}
		if len(partials) > 0 {
			if err := tx.Create(&partials).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *repo) MarkScraped(ctx context.Context, db *gorm.DB, scrapedDomain string, storeCount int64, scrapedAt int64) error {
	marker := domain.ScrapedDomain{
		Domain:     scrapedDomain,
		ScrapedAt:  scrapedAt,
		StoreCount: storeCount,
	}
	return db.WithContext(ctx).Save(&marker).Error
}

func (r *repo) IsScraped(ctx context.Context, db *gorm.DB, scrapedDomain string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ScrapedDomain{}).
		Where("domain = ?", scrapedDomain).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListStoresFilter, page pagination.Pagination) ([]domain.StoreSummary, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Store{})
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		stmt = stmt.Where("(stores.name LIKE ? OR stores.domain LIKE ? OR stores.url LIKE ?)", pattern, pattern, pattern)
	}
	if filter.Country != "" {
		stmt = stmt.Where("country = ?", filter.Country)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var stores []domain.StoreSummary
	err := stmt.
		Select(`stores.store_id, stores.name, stores.domain, stores.country, stores.url,
			stores.active, stores.supported, stores.shoppers_30d, stores.created, stores.updated,
			COUNT(coupons.id) AS coupon_count`).
		Joins("LEFT JOIN coupons ON stores.store_id = coupons.store_id").
		Group("stores.store_id").
		Order("stores.updated DESC").
		Limit(page.PerPage).
		Offset(page.Offset()).
		Scan(&stores).Error
	if err != nil {
		return nil, 0, err
	}

	return stores, total, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, storeID string) (*domain.Store, error) {
	var store domain.Store
	err := db.WithContext(ctx).
		Where("store_id = ?", storeID).
		First(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repo) CouponsByStore(ctx context.Context, db *gorm.DB, storeID string) ([]domain.CouponWithUsage, error) {
	var coupons []domain.CouponWithUsage
	err := db.WithContext(ctx).Raw(
		`SELECT c.*,
			COUNT(r.id) AS usage_report_count,
			SUM(CASE WHEN r.worked = 1 THEN 1 ELSE 0 END) AS worked_count,
			SUM(CASE WHEN r.worked = 0 THEN 1 ELSE 0 END) AS failed_count,
			AVG(CASE WHEN r.worked = 1 THEN r.amount_saved END) AS avg_savings
		 FROM coupons c
		 LEFT JOIN coupon_usage_reports r ON c.id = r.coupon_id
		 WHERE c.store_id = ?
		 GROUP BY c.id
		 ORDER BY c.created DESC`,
		storeID,
	).Scan(&coupons).Error
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

func (r *repo) PartialURLsByStore(ctx context.Context, db *gorm.DB, storeID string) ([]domain.PartialURL, error) {
	var partials []domain.PartialURL
	err := db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Find(&partials).Error
	if err != nil {
		return nil, err
	}
	return partials, nil
}

func (r *repo) ExportAll(ctx context.Context, db *gorm.DB) ([]domain.Store, error) {
	var stores []domain.Store
	if err := db.WithContext(ctx).Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *repo) ExportSummaries(ctx context.Context, db *gorm.DB) ([]domain.StoreSummary, error) {
	var stores []domain.StoreSummary
	err := db.WithContext(ctx).
		Model(&domain.Store{}).
		Select(`stores.store_id, stores.name, stores.domain, stores.country, stores.url,
			stores.active, stores.supported, stores.shoppers_30d, stores.created, stores.updated,
			stores.partial_url, stores.logo_url,
			COUNT(coupons.id) AS coupon_count`).
		Joins("LEFT JOIN coupons ON stores.store_id = coupons.store_id").
		Group("stores.store_id").
		Scan(&stores).Error
	if err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB) (*domain.Stats, error) {
	var stats domain.Stats
	tx := db.WithContext(ctx)

	if err := tx.Model(&domain.Store{}).Count(&stats.TotalStores).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&domain.Store{}).Where("active = ?", true).Count(&stats.ActiveStores).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&domain.ScrapedDomain{}).Count(&stats.DomainsScraped).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&domain.Coupon{}).Count(&stats.TotalCoupons).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&domain.Coupon{}).Distinct("store_id").Count(&stats.StoresWithCoupon).Error; err != nil {
		return nil, err
	}

	err := tx.Model(&domain.Store{}).
		Select("country, COUNT(*) AS count").
		Where("country IS NOT NULL AND country <> ''").
		Group("country").
		Order("count DESC").
		Limit(10).
		Scan(&stats.TopCountries).Error
	if err != nil {
		return nil, err
	}

	err = tx.Model(&domain.Store{}).
		Select("name, country, url, updated").
		Order("updated DESC").
		Limit(10).
		Scan(&stats.RecentStores).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func (r *repo) Countries(ctx context.Context, db *gorm.DB) ([]domain.CountryCount, error) {
	var countries []domain.CountryCount
	err := db.WithContext(ctx).
		Model(&domain.Store{}).
		Select("country, COUNT(*) AS count").
		Where("country IS NOT NULL AND country <> ''").
		Group("country").
		Order("count DESC").
		Scan(&countries).Error
	if err != nil {
		return nil, err
	}
	return countries, nil
}

func (r *repo) CouponByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repo) InsertUsageReport(ctx context.Context, db *gorm.DB, report *domain.CouponUsageReport) error {
	return db.WithContext(ctx).Create(report).Error
}

func (r *repo) UsageReportsByCoupon(ctx context.Context, db *gorm.DB, couponID int64) ([]domain.CouponUsageReport, error) {
	var reports []domain.CouponUsageReport
	err := db.WithContext(ctx).
		Where("coupon_id = ?", couponID).
		Order("reported_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}
