package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/nectar/internal/clock"
	"github.com/smallbiznis/nectar/internal/config"
	"github.com/smallbiznis/nectar/internal/fetcher"
	"github.com/smallbiznis/nectar/internal/observability/metrics"
	"github.com/smallbiznis/nectar/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// State is the lifecycle state of the pipeline.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// ErrAlreadyRunning is returned by Start when a run is in progress.
var ErrAlreadyRunning = errors.New("scraper_already_running")

// Source is the upstream catalog the pipeline reads from.
type Source interface {
	ListDomains(ctx context.Context) ([]string, error)
	ResolveStoreIDs(ctx context.Context, domain string) ([]fetcher.StoreMapping, error)
	FetchStoreDetail(ctx context.Context, storeID string) (*fetcher.StoreDetail, error)
}

// Options control a single run.
type Options struct {
	MaxDomains   *int  `json:"max_domains"`
	SkipExisting *bool `json:"skip_existing"`
}

// Snapshot is a point-in-time copy of the run state.
type Snapshot struct {
	State             State      `json:"state"`
	Mode              string     `json:"mode,omitempty"`
	CurrentDomain     string     `json:"current_domain,omitempty"`
	Processed         int        `json:"domains_processed"`
	Total             int        `json:"total_domains"`
	Saved             int        `json:"stores_saved"`
	Skipped           int        `json:"domains_skipped"`
	Errors            int        `json:"errors"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	LastError         string     `json:"last_error,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	Source   Source
	Settings *config.ScrapeSettings
	Clock    clock.Clock
	Metrics  *metrics.Metrics
}

// Pipeline walks the domain list sequentially: resolve store IDs, fetch
// each store, persist, then mark the domain scraped. Exactly one run may
// be active at a time.
type Pipeline struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	source   Source
	settings *config.ScrapeSettings
	clock    clock.Clock
	metrics  *metrics.Metrics

	stateMu  sync.Mutex
	state    stateData
	stopFlag bool
	done     chan struct{}
}

type stateData struct {
	snapshot Snapshot
}

func New(p Params) *Pipeline {
	return &Pipeline{
		db:       p.DB,
		log:      p.Log.Named("scraper"),
		repo:     p.Repo,
		source:   p.Source,
		settings: p.Settings,
		clock:    p.Clock,
		metrics:  p.Metrics,
		state:    stateData{snapshot: Snapshot{State: StateIdle}},
	}
}

// Start begins a run in the background. It returns ErrAlreadyRunning if a
// run is already active.
func (p *Pipeline) Start(ctx context.Context, opts Options) error {
	p.stateMu.Lock()
	if p.state.snapshot.State == StateRunning {
		p.stateMu.Unlock()
		return ErrAlreadyRunning
	}

	skipExisting := true
	if opts.SkipExisting != nil {
		skipExisting = *opts.SkipExisting
	}
	maxDomains := 0
	if opts.MaxDomains != nil {
		if *opts.MaxDomains <= 0 {
			p.stateMu.Unlock()
			return fmt.Errorf("%w: max_domains must be positive", domain.ErrInvalidRequest)
		}
		maxDomains = *opts.MaxDomains
	}

	startedAt := p.clock.Now()
	p.state.snapshot = Snapshot{
		State:     StateRunning,
		Mode:      runMode(maxDomains, skipExisting),
		StartedAt: &startedAt,
	}
	p.stopFlag = false
	p.done = make(chan struct{})
	done := p.done
	p.stateMu.Unlock()

	p.metrics.RecordRunTransition(ctx, string(StateRunning))
	p.log.Info("scrape run starting",
		zap.Int("max_domains", maxDomains),
		zap.Bool("skip_existing", skipExisting),
	)

	go func() {
		defer close(done)
		p.run(context.Background(), maxDomains, skipExisting)
	}()

	return nil
}

// Stop requests a cooperative stop. The run halts at the next domain
// boundary; a no-op when nothing is running.
func (p *Pipeline) Stop() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.state.snapshot.State != StateRunning {
		return
	}
	p.stopFlag = true
	p.log.Info("scrape stop requested")
}

// Status returns a copy of the current run state.
func (p *Pipeline) Status() Snapshot {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state.snapshot
}

// Wait blocks until the active run finishes. Used by the scheduler and
// tests; returns immediately when idle.
func (p *Pipeline) Wait() {
	p.stateMu.Lock()
	done := p.done
	p.stateMu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Pipeline) run(ctx context.Context, maxDomains int, skipExisting bool) {
	domains, err := p.source.ListDomains(ctx)
	if err != nil {
		p.metrics.RecordFetch(ctx, "list_domains", "error")
		p.finish(ctx, StateFailed, fmt.Sprintf("list domains: %v", err))
		return
	}
	p.metrics.RecordFetch(ctx, "list_domains", "ok")

	if len(domains) == 0 {
		p.finish(ctx, StateCompleted, "no supported domains returned")
		return
	}
	if maxDomains > 0 && maxDomains < len(domains) {
		domains = domains[:maxDomains]
	}

	p.update(func(s *Snapshot) { s.Total = len(domains) })

	for i, d := range domains {
		// Re-read per iteration so a config reload applies mid-run,
		// same as the request delay.
		maxConsecutive := p.settings.Get().MaxConsecutiveErrors

		if p.stopRequested() {
			p.finish(ctx, StateStopped, "")
			return
		}

		p.update(func(s *Snapshot) {
			s.CurrentDomain = d
			s.Processed = i + 1
		})

		if skipExisting {
			scraped, err := p.repo.IsScraped(ctx, p.db, d)
			if err != nil {
				p.finish(ctx, StateFailed, fmt.Sprintf("check scraped marker: %v", err))
				return
			}
			if scraped {
				p.metrics.RecordDomainSkipped(ctx)
				p.update(func(s *Snapshot) { s.Skipped++ })
				continue
			}
		}

		p.log.Info("processing domain", zap.String("domain", d), zap.Int("position", i+1), zap.Int("total", len(domains)))

		mappings, err := p.source.ResolveStoreIDs(ctx, d)
		if err != nil {
			p.metrics.RecordFetch(ctx, "resolve_store_ids", "error")
			p.recordError(ctx, fmt.Sprintf("resolve %s: %v", d, err))
			if p.consecutiveErrors() >= maxConsecutive {
				p.finish(ctx, StateFailed, fmt.Sprintf("aborted after %d consecutive errors", maxConsecutive))
				return
			}
			// The domain stays marked so a later resume does not retry it.
			if err := p.repo.MarkScraped(ctx, p.db, d, 0, p.clock.Now().UnixMilli()); err != nil {
				p.finish(ctx, StateFailed, fmt.Sprintf("mark domain scraped: %v", err))
				return
			}
			continue
		}
		p.metrics.RecordFetch(ctx, "resolve_store_ids", "ok")
		p.resetConsecutive()

		if len(mappings) == 0 {
			if err := p.repo.MarkScraped(ctx, p.db, d, 0, p.clock.Now().UnixMilli()); err != nil {
				p.finish(ctx, StateFailed, fmt.Sprintf("mark domain scraped: %v", err))
				return
			}
			continue
		}

		domainStoreCount := int64(0)
		aborted := false

		for _, mapping := range mappings {
			if skipExisting {
				existing, err := p.repo.FindByID(ctx, p.db, mapping.StoreID)
				if err != nil {
					p.finish(ctx, StateFailed, fmt.Sprintf("check store %s: %v", mapping.StoreID, err))
					return
				}
				if existing != nil {
					domainStoreCount++
					continue
				}
			}

			detail, err := p.source.FetchStoreDetail(ctx, mapping.StoreID)
			if err != nil {
				p.metrics.RecordFetch(ctx, "fetch_store", "error")
				p.recordError(ctx, fmt.Sprintf("fetch store %s: %v", mapping.StoreID, err))
				if !errors.Is(err, fetcher.ErrStoreNotFound) && p.consecutiveErrors() >= maxConsecutive {
					aborted = true
					break
				}
				continue
			}
			p.metrics.RecordFetch(ctx, "fetch_store", "ok")
			p.resetConsecutive()

			store, coupons, partials := convertStoreDetail(d, mapping, detail)
			if err := p.repo.UpsertStore(ctx, p.db, store, coupons, partials); err != nil {
				p.finish(ctx, StateFailed, fmt.Sprintf("save store %s: %v", mapping.StoreID, err))
				return
			}

			p.metrics.RecordStoreSaved(ctx)
			p.update(func(s *Snapshot) { s.Saved++ })
			domainStoreCount++

			p.log.Debug("store saved",
				zap.String("store_id", mapping.StoreID),
				zap.String("name", detail.Name),
				zap.String("country", detail.Country),
			)
		}

		if err := p.repo.MarkScraped(ctx, p.db, d, domainStoreCount, p.clock.Now().UnixMilli()); err != nil {
			p.finish(ctx, StateFailed, fmt.Sprintf("mark domain scraped: %v", err))
			return
		}

		if aborted {
			p.finish(ctx, StateFailed, fmt.Sprintf("aborted after %d consecutive errors", maxConsecutive))
			return
		}
	}

	if p.stopRequested() {
		p.finish(ctx, StateStopped, "")
		return
	}
	p.finish(ctx, StateCompleted, "")
}

func (p *Pipeline) finish(ctx context.Context, state State, lastError string) {
	finishedAt := p.clock.Now()

	p.stateMu.Lock()
	p.state.snapshot.State = state
	p.state.snapshot.CurrentDomain = ""
	p.state.snapshot.FinishedAt = &finishedAt
	if lastError != "" {
		p.state.snapshot.LastError = lastError
	}
	snapshot := p.state.snapshot
	p.stopFlag = false
	p.stateMu.Unlock()

	p.metrics.RecordRunTransition(ctx, string(state))
	p.log.Info("scrape run finished",
		zap.String("state", string(state)),
		zap.Int("processed", snapshot.Processed),
		zap.Int("saved", snapshot.Saved),
		zap.Int("skipped", snapshot.Skipped),
		zap.Int("errors", snapshot.Errors),
		zap.String("last_error", snapshot.LastError),
	)
}

func (p *Pipeline) recordError(ctx context.Context, msg string) {
	p.metrics.RecordScrapeError(ctx, "fetch")
	p.update(func(s *Snapshot) {
		s.Errors++
		s.ConsecutiveErrors++
		s.LastError = msg
	})
	p.log.Warn("scrape error", zap.String("error", msg))
}

func (p *Pipeline) consecutiveErrors() int {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state.snapshot.ConsecutiveErrors
}

func (p *Pipeline) resetConsecutive() {
	p.update(func(s *Snapshot) { s.ConsecutiveErrors = 0 })
}

func (p *Pipeline) stopRequested() bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.stopFlag
}

func (p *Pipeline) update(fn func(*Snapshot)) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	fn(&p.state.snapshot)
}

func runMode(maxDomains int, skipExisting bool) string {
	mode := "Full scrape"
	if maxDomains > 0 {
		mode = fmt.Sprintf("Limited (%d domains)", maxDomains)
	}
	if skipExisting {
		return mode + " - Skip existing"
	}
	return mode + " - Fresh"
}
