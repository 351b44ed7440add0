package prices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"meanrev/internal/domain"
	"meanrev/internal/store"
	"meanrev/internal/util"
)

// Compile-time interface check.
var _ Provider = (*AlpacaProvider)(nil)

// staleAfterDays is how far the newest cached close may trail the requested
// end before a ticker is refetched. Five calendar days spans any weekend
// plus a holiday.
const staleAfterDays = 5

// startSlackDays is how far the oldest cached close may trail the requested
// start. A series starting later than this is refetched in full: a cache
// written by an earlier, shorter-lookback run is indistinguishable from a
// late listing.
const startSlackDays = 30

// AlpacaProvider fetches daily bars from the Alpaca market-data API in
// batched, rate-limited calls. Fetched series are merged into the Parquet
// cache so repeated runs over the same range hit the network only for
// stale tickers.
type AlpacaProvider struct {
	client     *marketdata.Client
	cache      *store.PriceCache
	batchSize  int // tickers per API call
	maxWorkers int // concurrent batch fetches
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// NewAlpacaProvider creates an AlpacaProvider configured with the given
// Alpaca credentials, price cache, and batch parameters.
func NewAlpacaProvider(apiKey, apiSecret, dataURL string, cache *store.PriceCache, batchSize, maxWorkers, ratePerMin int) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaProvider{
		client:     marketdata.NewClient(opts),
		cache:      cache,
		batchSize:  max(batchSize, 1),
		maxWorkers: max(maxWorkers, 1),
		limiter:    util.NewRateLimiter(ratePerMin),
		log:        slog.Default().With("component", "prices"),
	}
}

// Histories returns the daily closing-price series for each ticker over
// [start, end]. Cache-fresh tickers are served from disk; the rest are
// fetched in batches by a worker pool. Tickers the API returns nothing for
// are absent from the result.
func (p *AlpacaProvider) Histories(ctx context.Context, tickers []string, start, end time.Time) (map[string]domain.PriceSeries, error) {
	histories := make(map[string]domain.PriceSeries, len(tickers))

	// 1. Serve fresh tickers from the cache.
	var remaining []string
	for _, ticker := range tickers {
		cached, err := p.cache.ReadSeries(ticker, start, end)
		if err != nil {
			p.log.Warn("cache read failed", "ticker", ticker, "err", err)
		}
		if isFresh(cached, start, end) {
			histories[ticker] = cached
			continue
		}
		remaining = append(remaining, ticker)
	}

	p.log.Info("cache scan done",
		"tickers", len(tickers),
		"cached", len(histories),
		"fetching", len(remaining),
	)

	if len(remaining) == 0 {
		return histories, nil
	}

	// 2. Split the rest into batches and feed them to workers.
	batches := splitBatches(remaining, p.batchSize)
	batchCh := make(chan int, len(batches))
	for i := range batches {
		batchCh <- i
	}
	close(batchCh)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		fetched atomic.Int64
		empty   atomic.Int64
	)

	workers := min(p.maxWorkers, len(batches))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batchIdx := range batchCh {
				if ctx.Err() != nil {
					return
				}

				batch := batches[batchIdx]
				series, err := p.fetchBatch(ctx, batch, start, end)
				if err != nil {
					p.log.Error("batch fetch failed",
						"batch", fmt.Sprintf("%d/%d", batchIdx+1, len(batches)),
						"err", err,
					)
					continue
				}

				for _, ticker := range batch {
					s, ok := series[ticker]
					if !ok || len(s) == 0 {
						empty.Add(1)
						continue
					}
					if err := p.cache.WriteSeries(ticker, s); err != nil {
						p.log.Warn("cache write failed", "ticker", ticker, "err", err)
					}
					mu.Lock()
					histories[ticker] = s
					mu.Unlock()
					fetched.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.log.Info("fetch complete",
		"fetched", fetched.Load(),
		"empty", empty.Load(),
	)
	return histories, nil
}

// fetchBatch fetches daily bars for one batch of tickers in a single
// rate-limited API call, retried on transient errors.
func (p *AlpacaProvider) fetchBatch(ctx context.Context, tickers []string, start, end time.Time) (map[string]domain.PriceSeries, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, 3, time.Second, func() error {
		var err error
		multiBars, err = p.client.GetMultiBars(tickers, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	series := make(map[string]domain.PriceSeries, len(multiBars))
	for symbol, bars := range multiBars {
		series[strings.ToUpper(symbol)] = barsToSeries(bars)
	}
	return series, nil
}

// barsToSeries converts Alpaca daily bars to a normalized closing-price
// series. Bar timestamps carry the session start; only the calendar day
// matters here.
func barsToSeries(bars []marketdata.Bar) domain.PriceSeries {
	points := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		points = append(points, domain.PricePoint{
			Date:  util.Day(b.Timestamp),
			Close: b.Close,
		})
	}
	return domain.NormalizeSeries(points)
}

// isFresh reports whether a cached series can serve [start, end] without a
// refetch.
func isFresh(s domain.PriceSeries, start, end time.Time) bool {
	if len(s) == 0 {
		return false
	}
	if s[len(s)-1].Date.Before(end.AddDate(0, 0, -staleAfterDays)) {
		return false
	}
	return !s[0].Date.After(start.AddDate(0, 0, startSlackDays))
}

// splitBatches splits tickers into slices of at most size each.
func splitBatches(tickers []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(tickers); i += size {
		end := min(i+size, len(tickers))
		batches = append(batches, tickers[i:end])
	}
	return batches
}
