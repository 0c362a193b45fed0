package scraper

import (
	"context"

	"github.com/smallbiznis/nectar/internal/fetcher"
	"go.uber.org/fx"
)

var Module = fx.Module("scraper",
	fx.Provide(
		func(c *fetcher.Client) Source { return c },
		New,
	),
	fx.Invoke(func(lc fx.Lifecycle, p *Pipeline) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				p.Stop()
				return nil
			},
		})
	}),
)
