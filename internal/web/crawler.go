package web

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/soltrace/soltrace/internal/solana"
)

// ---------------------------------------------------------------------------
// Wallet Web Crawler — budgeted breadth-first discovery via shared tokens
// ---------------------------------------------------------------------------

// TokenSource is the slice of the data source the crawler needs.
type TokenSource interface {
	GetHoldings(ctx context.Context, wallet solana.Pubkey) ([]solana.Pubkey, error)
	GetLargestHolders(ctx context.Context, mint solana.Pubkey, limit int) ([]solana.Pubkey, error)
}

// Pacer throttles the crawl between wallet visits.
type Pacer interface {
	Pace(ctx context.Context) error
}

// ratePacer paces with a token-bucket limiter.
type ratePacer struct {
	limiter *rate.Limiter
}

// NewRatePacer returns a Pacer that allows one visit per delay.
func NewRatePacer(delay time.Duration) Pacer {
	return &ratePacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

func (p *ratePacer) Pace(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NopPacer is a Pacer that never waits, for tests.
type NopPacer struct{}

func (NopPacer) Pace(context.Context) error { return nil }

// Config configures the crawler.
type Config struct {
	Budget          int           `yaml:"budget"`           // max distinct wallets visited
	HolderFanout    int           `yaml:"holder_fanout"`    // largest holders fetched per token
	ExpandThreshold int           `yaml:"expand_threshold"` // expand while distinct holders <= this
	PaceDelay       time.Duration `yaml:"pace_delay"`       // delay between wallet visits
}

// DefaultConfig returns crawl defaults sized for public RPC endpoints.
func DefaultConfig() Config {
	return Config{
		Budget:          25,
		HolderFanout:    5,
		ExpandThreshold: 3,
		PaceDelay:       200 * time.Millisecond,
	}
}

// Crawler performs budgeted breadth-first discovery from a seed wallet,
// building a relationship index as it goes.
type Crawler struct {
	config Config
	source TokenSource
	pacer  Pacer

	// Stats.
	walletsVisited atomic.Int64
	lookupErrors   atomic.Int64
	holderQueries  atomic.Int64
}

// NewCrawler creates a crawler. A nil pacer gets a rate pacer from the
// configured pace delay.
func NewCrawler(config Config, source TokenSource, pacer Pacer) *Crawler {
	if pacer == nil {
		if config.PaceDelay <= 0 {
			config.PaceDelay = DefaultConfig().PaceDelay
		}
		pacer = NewRatePacer(config.PaceDelay)
	}
	return &Crawler{config: config, source: source, pacer: pacer}
}

// Crawl discovers wallets connected to seed through shared tokens and
// returns the resulting index. The budget is a hard ceiling on visited
// wallets, not on frontier size; a budget of zero visits nothing and
// returns an empty index. Individual lookup failures degrade to empty
// results: the crawl itself never fails. Cancelling ctx stops the crawl
// before the next visit and returns what was indexed so far.
func (c *Crawler) Crawl(ctx context.Context, seed solana.Pubkey) *Index {
	ix := NewIndex()
	if c.config.Budget <= 0 {
		return ix
	}

	crawlID := uuid.NewString()[:8]
	logger := log.With().Str("crawl_id", crawlID).Logger()
	logger.Info().
		Str("seed", string(seed)).
		Int("budget", c.config.Budget).
		Msg("crawl: starting")

	frontier := []solana.Pubkey{seed}
	visited := make(map[solana.Pubkey]bool)

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			logger.Warn().Int("visited", len(visited)).Msg("crawl: cancelled")
			return ix
		default:
		}

		// Budget is checked before dequeuing: the frontier may still hold
		// discovered wallets when the ceiling is reached.
		if len(visited) >= c.config.Budget {
			logger.Info().Int("frontier", len(frontier)).Msg("crawl: budget exhausted")
			break
		}

		wallet := frontier[0]
		frontier = frontier[1:]

		if visited[wallet] {
			continue
		}
		visited[wallet] = true
		c.walletsVisited.Add(1)

		mints, err := c.source.GetHoldings(ctx, wallet)
		if err != nil {
			c.lookupErrors.Add(1)
			logger.Debug().Err(err).Str("wallet", string(wallet)).Msg("crawl: holdings lookup failed")
			mints = nil
		}

		if len(mints) > 0 {
			logger.Debug().
				Str("wallet", string(wallet)).
				Int("tokens", len(mints)).
				Msg("crawl: wallet visited")
		}

		for _, mint := range mints {
			ix.recordHolder(mint, wallet)

			// Only expand sparsely-held tokens; widely-held ones connect
			// everything and blow up the frontier.
			if ix.DistinctHolders(mint) <= c.config.ExpandThreshold {
				holders, err := c.source.GetLargestHolders(ctx, mint, c.config.HolderFanout)
				if err != nil {
					c.lookupErrors.Add(1)
					logger.Debug().Err(err).Str("mint", string(mint)).Msg("crawl: holder lookup failed")
					continue
				}
				c.holderQueries.Add(1)

				for _, holder := range holders {
					if !visited[holder] {
						frontier = append(frontier, holder)
					}
					ix.recordHolder(mint, holder)
				}
			}
		}

		ix.recordVisit(wallet, mints)

		if err := c.pacer.Pace(ctx); err != nil {
			logger.Warn().Int("visited", len(visited)).Msg("crawl: cancelled during pacing")
			return ix
		}
	}

	logger.Info().
		Int("wallets", ix.VisitedCount()).
		Int("tokens", ix.TokenCount()).
		Msg("crawl: complete")
	return ix
}

// CrawlStats reports crawler counters.
type CrawlStats struct {
	WalletsVisited int64 `json:"wallets_visited"`
	LookupErrors   int64 `json:"lookup_errors"`
	HolderQueries  int64 `json:"holder_queries"`
}

func (c *Crawler) Stats() CrawlStats {
	return CrawlStats{
		WalletsVisited: c.walletsVisited.Load(),
		LookupErrors:   c.lookupErrors.Load(),
		HolderQueries:  c.holderQueries.Load(),
	}
}
