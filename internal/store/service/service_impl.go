package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nectar/internal/clock"
	"github.com/smallbiznis/nectar/internal/store/domain"
	"github.com/smallbiznis/nectar/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("store.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ListStores(ctx context.Context, req domain.ListStoresRequest) (domain.ListStoresResponse, error) {
	page := req.Pagination
	page.Normalize()

	filter := domain.ListStoresFilter{
		Search:     strings.TrimSpace(req.Search),
		Country:    strings.TrimSpace(req.Country),
		ActiveOnly: req.ActiveOnly,
	}

	stores, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListStoresResponse{}, err
	}
	if stores == nil {
		stores = []domain.StoreSummary{}
	}

	return domain.ListStoresResponse{
		Stores:     stores,
		Pagination: pagination.BuildPageInfo(page, total),
	}, nil
}

func (s *Service) GetStore(ctx context.Context, req domain.GetStoreRequest) (domain.GetStoreResponse, error) {
	storeID := strings.TrimSpace(req.StoreID)
	if storeID == "" {
		return domain.GetStoreResponse{}, domain.ErrInvalidID
	}

	store, err := s.repo.FindByID(ctx, s.db, storeID)
	if err != nil {
		return domain.GetStoreResponse{}, err
	}
	if store == nil {
		return domain.GetStoreResponse{}, domain.ErrNotFound
	}

	coupons, err := s.repo.CouponsByStore(ctx, s.db, storeID)
	if err != nil {
		return domain.GetStoreResponse{}, err
	}
	if coupons == nil {
		coupons = []domain.CouponWithUsage{}
	}

	partials, err := s.repo.PartialURLsByStore(ctx, s.db, storeID)
	if err != nil {
		return domain.GetStoreResponse{}, err
	}
	if partials == nil {
		partials = []domain.PartialURL{}
	}

	return domain.GetStoreResponse{
		Store:       store,
		Coupons:     coupons,
		PartialURLs: partials,
	}, nil
}

func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	stats, err := s.repo.Stats(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if stats.TopCountries == nil {
		stats.TopCountries = []domain.CountryCount{}
	}
	if stats.RecentStores == nil {
		stats.RecentStores = []domain.RecentStore{}
	}
	return stats, nil
}

func (s *Service) Countries(ctx context.Context) ([]domain.CountryCount, error) {
	countries, err := s.repo.Countries(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if countries == nil {
		countries = []domain.CountryCount{}
	}
	return countries, nil
}

func (s *Service) ReportCouponUsage(ctx context.Context, req domain.ReportCouponUsageRequest) (*domain.CouponUsageReport, error) {
	if req.CouponID <= 0 || req.Worked == nil {
		return nil, domain.ErrInvalidRequest
	}
	storeID := strings.TrimSpace(req.StoreID)
	code := strings.TrimSpace(req.Code)
	if storeID == "" || code == "" {
		return nil, domain.ErrInvalidRequest
	}

	coupon, err := s.repo.CouponByID(ctx, s.db, req.CouponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotExists
	}
	if coupon.StoreID != storeID {
		return nil, domain.ErrStoreMismatch
	}

	report := domain.CouponUsageReport{
		ID:          s.genID.Generate(),
		CouponID:    req.CouponID,
		StoreID:     storeID,
		Code:        code,
		Worked:      *req.Worked,
		AmountSaved: req.AmountSaved,
		AmountSpent: req.AmountSpent,
		Notes:       strings.TrimSpace(req.Notes),
		ReportedAt:  s.clock.Now().UnixMilli(),
	}

	if err := s.repo.InsertUsageReport(ctx, s.db, &report); err != nil {
		return nil, err
	}

	s.log.Info("coupon usage reported",
		zap.Int64("coupon_id", req.CouponID),
		zap.String("store_id", storeID),
		zap.Bool("worked", *req.Worked),
	)

	return &report, nil
}

func (s *Service) CouponUsage(ctx context.Context, req domain.CouponUsageRequest) ([]domain.CouponUsageReport, error) {
	if req.CouponID <= 0 {
		return nil, domain.ErrInvalidID
	}

	coupon, err := s.repo.CouponByID(ctx, s.db, req.CouponID)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotExists
	}

	reports, err := s.repo.UsageReportsByCoupon(ctx, s.db, req.CouponID)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []domain.CouponUsageReport{}
	}
	return reports, nil
}

func (s *Service) ExportStores(ctx context.Context) ([]domain.Store, error) {
	return s.repo.ExportAll(ctx, s.db)
}

func (s *Service) ExportSummaries(ctx context.Context) ([]domain.StoreSummary, error) {
	return s.repo.ExportSummaries(ctx, s.db)
}
