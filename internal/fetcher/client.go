package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/nectar/internal/config"
	"go.uber.org/zap"
)

const (
	opListDomains     = "list_domains"
	opResolveStoreIDs = "resolve_store_ids"
	opFetchStore      = "fetch_store"
)

// StoreMapping pairs a store ID with the partial URL it was resolved from.
type StoreMapping struct {
	StoreID    string `json:"storeId"`
	PartialURL string `json:"partialURL"`
}

type CouponDetail struct {
	Code                   string          `json:"code"`
	DealID                 string          `json:"dealId"`
	Description            string          `json:"description"`
	Created                int64           `json:"created"`
	Expires                int64           `json:"expires"`
	Exclusive              bool            `json:"exclusive"`
	Hidden                 bool            `json:"hidden"`
	Restrictions           string          `json:"restrictions"`
	Rank                   int64           `json:"rank"`
	AppliedAccCount        int64           `json:"applied_acc_count"`
	AppliedAccLastTS       int64           `json:"applied_acc_last_ts"`
	AppliedAccLastDiscount float64         `json:"applied_acc_last_discount"`
	URL                    string          `json:"url"`
	Meta                   json.RawMessage `json:"meta"`
	Sources                json.RawMessage `json:"sources"`
	Tags                   json.RawMessage `json:"tags"`
}

type PartialURLDetail struct {
	Domain     string `json:"domain"`
	PartialURL string `json:"partialURL"`
}

// StoreDetail is the upstream store payload. Raw keeps the untouched body
// so the full document can be persisted alongside the extracted columns.
type StoreDetail struct {
	StoreID               string             `json:"storeId"`
	Name                  string             `json:"name"`
	Label                 string             `json:"label"`
	Country               string             `json:"country"`
	URL                   string             `json:"url"`
	LogoURL               string             `json:"logoUrl"`
	Active                bool               `json:"active"`
	Supported             bool               `json:"supported"`
	SupportStage          string             `json:"supportStage"`
	Created               int64              `json:"created"`
	Updated               int64              `json:"updated"`
	Checked               int64              `json:"checked"`
	Score                 int64              `json:"score"`
	Shoppers24h           int64              `json:"shoppers24h"`
	Shoppers30d           int64              `json:"shoppers30d"`
	ShoppersChange        int64              `json:"shoppersChange"`
	NumSavings24h         int64              `json:"numSavings24h"`
	NumSavings30d         int64              `json:"numSavings30d"`
	AvgSavings24h         float64            `json:"avgSavings24h"`
	AvgSavings30d         float64            `json:"avgSavings30d"`
	Metadata              json.RawMessage    `json:"metadata"`
	AffiliateURL          string             `json:"affiliateURL"`
	AffiliateRestrictions string             `json:"affiliateRestrictions"`
	UGCAllowed            bool               `json:"ugcAllowed"`
	FreeShippingThreshold *float64           `json:"freeShippingThreshold"`
	ForceJSRedirect       bool               `json:"forceJsRedirect"`
	LaunchpadPathname     string             `json:"launchpadPathname"`
	PublicCoupons         []CouponDetail     `json:"publicCoupons"`
	PartialURLs           []PartialURLDetail `json:"partialUrls"`

	Raw json.RawMessage `json:"-"`
}

// Client talks to the upstream catalog API. Every request waits out the
// configured inter-request delay first, so a single client never exceeds
// the polite request rate no matter who calls it.
type Client struct {
	http     *resty.Client
	settings *config.ScrapeSettings
	log      *zap.Logger

	mu       sync.Mutex
	lastSent time.Time
}

func NewClient(cfg config.Config, settings *config.ScrapeSettings, log *zap.Logger) *Client {
	http := resty.New().
		SetBaseURL(cfg.ScrapeBaseURL).
		SetHeader("User-Agent", cfg.ScrapeUserAgent).
		SetTimeout(settings.Get().RequestTimeout)

	return &Client{
		http:     http,
		settings: settings,
		log:      log.Named("fetcher"),
	}
}

// ListDomains fetches the flat list of all supported domains.
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	res, err := c.get(ctx, opListDomains, "/v2/stores/partials/supported-domains", nil)
	if err != nil {
		return nil, err
	}

	var domains []string
	if err := json.Unmarshal(res.Body(), &domains); err != nil {
		return nil, &FormatError{Op: opListDomains, Err: err}
	}

	return domains, nil
}

// ResolveStoreIDs maps a domain to its store IDs. An empty result is not
// an error; some supported domains have no resolvable stores.
func (c *Client) ResolveStoreIDs(ctx context.Context, domain string) ([]StoreMapping, error) {
	variables, err := json.Marshal(map[string]string{"domain": domain})
	if err != nil {
		return nil, &FormatError{Op: opResolveStoreIDs, Err: err}
	}

	res, err := c.get(ctx, opResolveStoreIDs, "/v3", map[string]string{
		"operationName": "ext_getStorePartialsByDomain",
		"variables":     string(variables),
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data struct {
			Mappings []StoreMapping `json:"getPartialURLsByDomain"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return nil, &FormatError{Op: opResolveStoreIDs, Err: err}
	}

	return envelope.Data.Mappings, nil
}

// FetchStoreDetail fetches the full store document for one store ID.
// Returns ErrStoreNotFound when upstream has no such store.
func (c *Client) FetchStoreDetail(ctx context.Context, storeID string) (*StoreDetail, error) {
	variables, err := json.Marshal(map[string]any{
		"storeId":      storeID,
		"maxUGC":       3,
		"successCount": 1,
	})
	if err != nil {
		return nil, &FormatError{Op: opFetchStore, Err: err}
	}

	res, err := c.get(ctx, opFetchStore, "/v3", map[string]string{
		"operationName":    "ext_getStoreById",
		"variables":        string(variables),
		"operationVersion": "18",
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data struct {
			Store json.RawMessage `json:"getStoreById"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body(), &envelope); err != nil {
		return nil, &FormatError{Op: opFetchStore, Err: err}
	}
	if len(envelope.Data.Store) == 0 || string(envelope.Data.Store) == "null" {
		return nil, ErrStoreNotFound
	}

	var detail StoreDetail
	if err := json.Unmarshal(envelope.Data.Store, &detail); err != nil {
		return nil, &FormatError{Op: opFetchStore, Err: err}
	}
	if detail.StoreID == "" {
		return nil, &FormatError{Op: opFetchStore, Reason: "response missing storeId"}
	}
	detail.Raw = envelope.Data.Store

	return &detail, nil
}

func (c *Client) get(ctx context.Context, op, path string, query map[string]string) (*resty.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	res, err := req.Get(path)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		if res.StatusCode() == http.StatusNotFound && op == opFetchStore {
			return nil, ErrStoreNotFound
		}
		return nil, &TransportError{Op: op, Status: res.StatusCode()}
	}

	return res, nil
}

// wait blocks until the configured delay has elapsed since the previous
// request, reading the delay live so runtime changes apply immediately.
func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delay := c.settings.Get().Delay
	elapsed := time.Since(c.lastSent)
	if !c.lastSent.IsZero() && elapsed < delay {
		timer := time.NewTimer(delay - elapsed)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	c.lastSent = time.Now()
	return nil
}
