package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/nectar/internal/clock"
	"github.com/smallbiznis/nectar/internal/config"
	"github.com/smallbiznis/nectar/internal/fetcher"
	"github.com/smallbiznis/nectar/internal/scraper"
	storedomain "github.com/smallbiznis/nectar/internal/store/domain"
	"github.com/smallbiznis/nectar/internal/store/repository"
	storeservice "github.com/smallbiznis/nectar/internal/store/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) ListDomains(context.Context) ([]string, error) {
	close(s.started)
	<-s.release
	return nil, nil
}

func (s *blockingSource) ResolveStoreIDs(context.Context, string) ([]fetcher.StoreMapping, error) {
	return nil, nil
}

func (s *blockingSource) FetchStoreDetail(context.Context, string) (*fetcher.StoreDetail, error) {
	return nil, nil
}

func newTestServer(t *testing.T, source scraper.Source) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&storedomain.Store{},
		&storedomain.Coupon{},
		&storedomain.PartialURL{},
		&storedomain.ScrapedDomain{},
		&storedomain.CouponUsageReport{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.Provide()
	fakeClock := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	settings := config.NewStaticScrapeSettings(config.ScrapeConfig{})

	svc := storeservice.New(storeservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fakeClock,
		Repo:  repo,
	})

	if source == nil {
		source = &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	}
	pipeline := scraper.New(scraper.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repo,
		Source:   source,
		Settings: settings,
		Clock:    fakeClock,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:      engine,
		Cfg:      config.Config{},
		DB:       db,
		StoreSvc: svc,
		Pipeline: pipeline,
		Settings: settings,
	})

	return srv, db
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func seedStore(t *testing.T, db *gorm.DB, storeID, dom, country string, codes ...string) int64 {
	t.Helper()

	repo := repository.Provide()
	store := &storedomain.Store{StoreID: storeID, Domain: dom, Name: "Store " + storeID, Country: country, Active: true}
	coupons := make([]storedomain.Coupon, 0, len(codes))
	for _, code := range codes {
		coupons = append(coupons, storedomain.Coupon{Code: code})
	}
	require.NoError(t, repo.UpsertStore(context.Background(), db, store, coupons, nil))

	if len(codes) == 0 {
		return 0
	}
	var coupon storedomain.Coupon
	require.NoError(t, db.Where("store_id = ?", storeID).First(&coupon).Error)
	return coupon.ID
}

func TestScraperStatusIdle(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/scraper/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			State string  `json:"state"`
			Delay float64 `json:"delay"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "idle", body.Data.State)
	assert.Equal(t, 0.0, body.Data.Delay)
}

func TestStartScraperConflict(t *testing.T) {
	source := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	srv, _ := newTestServer(t, source)

	rec := doRequest(srv, http.MethodPost, "/api/scraper/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	<-source.started

	rec = doRequest(srv, http.MethodPost, "/api/scraper/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "conflict")

	close(source.release)
	srv.pipeline.Wait()
}

func TestStartScraperInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/scraper/start", `{"max_domains":"many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopScraperAlwaysOK(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/scraper/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateScraperDelay(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/scraper/delay", `{"delay":2.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2500*time.Millisecond, srv.settings.Get().Delay)

	rec = doRequest(srv, http.MethodPost, "/api/scraper/delay", `{"delay":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/scraper/delay", `{"delay":11}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/scraper/delay", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListStores(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedStore(t, db, "s1", "a.com", "US", "C1")
	seedStore(t, db, "s2", "b.de", "DE")

	rec := doRequest(srv, http.MethodGet, "/api/stores?country=US", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data storedomain.ListStoresResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Stores, 1)
	assert.Equal(t, "s1", body.Data.Stores[0].StoreID)
	assert.Equal(t, int64(1), body.Data.Stores[0].CouponCount)
	assert.Equal(t, int64(1), body.Data.Pagination.Total)
}

func TestGetStoreNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/store/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestGetStoreDetail(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedStore(t, db, "s1", "a.com", "US", "SAVE10")

	rec := doRequest(srv, http.MethodGet, "/api/store/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store_id":"s1"`)
	assert.Contains(t, rec.Body.String(), "SAVE10")
}

func TestStats(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedStore(t, db, "s1", "a.com", "US", "C1")

	rec := doRequest(srv, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data storedomain.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Data.TotalStores)
	assert.Equal(t, int64(1), body.Data.TotalCoupons)
}

func TestCountries(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedStore(t, db, "s1", "a.com", "US")

	rec := doRequest(srv, http.MethodGet, "/api/countries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"US"`)
}

func TestReportCouponUsage(t *testing.T) {
	srv, db := newTestServer(t, nil)
	couponID := seedStore(t, db, "s1", "a.com", "US", "SAVE10")

	payload := fmt.Sprintf(`{"coupon_id":%d,"store_id":"s1","code":"SAVE10","worked":true}`, couponID)
	rec := doRequest(srv, http.MethodPost, "/api/coupon/report", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "report_id")

	rec = doRequest(srv, http.MethodGet, fmt.Sprintf("/api/coupon/%d/usage", couponID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"worked":true`)
}

func TestReportCouponUsageMissingFields(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/coupon/report", `{"store_id":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCouponUsageInvalidID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/api/coupon/abc/usage", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCSV(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedStore(t, db, "s1", "a.com", "US", "C1")

	rec := doRequest(srv, http.MethodGet, "/api/export/csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, strings.Join(csvHeader, ","), strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "s1")
}

func TestExportJSON(t *testing.T) {
	srv, db := newTestServer(t, nil)
	seedStore(t, db, "s1", "a.com", "US")

	rec := doRequest(srv, http.MethodGet, "/api/export/json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), `"store_id":"s1"`)
}
