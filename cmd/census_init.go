package main

import (
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quietcreep/citysdk/internal/census"
	"github.com/quietcreep/citysdk/internal/fetcher"
	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/internal/metrics"
	"github.com/quietcreep/citysdk/internal/resilience"
	"github.com/quietcreep/citysdk/internal/variables"
	"github.com/quietcreep/citysdk/pkg/censusapi"
	"github.com/quietcreep/citysdk/pkg/geocode"
	"github.com/quietcreep/citysdk/pkg/tigerweb"
)

// censusEnv holds the clients and the resolver used by the request, geo,
// variables and serve commands.
type censusEnv struct {
	Resolver *census.Resolver
	Stats    *censusapi.Client
	Metrics  *metrics.Metrics
}

// initCensus validates the config for mode and wires the upstream clients
// into a Resolver.
func initCensus(mode string) (*censusEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	level, err := geography.ParseLevel(cfg.Census.DefaultLevel)
	if err != nil {
		return nil, eris.Wrap(err, "census.default_level")
	}
	catalog, err := variables.Load(cfg.Census.AliasesFile)
	if err != nil {
		return nil, err
	}

	m := metrics.New(prometheus.NewRegistry())
	f := fetcher.New(fetcher.Options{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		Policy:    resilience.PolicyFromSettings(cfg.HTTP.MaxRetries, cfg.HTTP.InitialBackoffMs, cfg.HTTP.MaxBackoffMs),
		Limits:    upstreamLimits(),
		Observer:  m.ObserveUpstream,
	})

	gcOpts := []geocode.Option{
		geocode.WithFetcher(f),
		geocode.WithBaseURLs(cfg.Census.GeocoderBaseURL, cfg.Census.TigerwebBaseURL),
		geocode.WithBenchmark(cfg.Census.GeocoderBenchmark, cfg.Census.GeocoderVintage),
	}
	if cfg.Census.GoogleAPIKey != "" {
		gcOpts = append(gcOpts, geocode.WithGoogleAPIKey(cfg.Census.GoogleAPIKey))
	}

	stats := censusapi.New(f, cfg.Census.StatsBaseURL, cfg.Census.APIKey)
	if cfg.Census.APIKey == "" {
		zap.L().Debug("census: no api key configured, requests are rate limited upstream")
	}

	r := census.NewResolver(
		geocode.NewClient(gcOpts...),
		stats,
		tigerweb.NewPool(f, cfg.Census.TigerwebBaseURL),
		catalog,
		census.Options{
			Defaults: census.Defaults{
				Year:    cfg.Census.DefaultYear,
				API:     cfg.Census.DefaultAPI,
				Level:   level,
				Vintage: cfg.Census.Vintage,
			},
			SupplementalConcurrency: cfg.Census.SupplementalConcurrency,
			Metrics:                 m,
		},
	)
	return &censusEnv{Resolver: r, Stats: stats, Metrics: m}, nil
}

// upstreamLimits is fetcher.DefaultLimits with the geocoder host set to
// census.geocoder_rps.
func upstreamLimits() map[string]rate.Limit {
	limits := fetcher.DefaultLimits()
	if cfg.Census.GeocoderRPS <= 0 {
		return limits
	}
	host := "geocoding.geo.census.gov"
	if u, err := url.Parse(cfg.Census.GeocoderBaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	limits[host] = rate.Limit(cfg.Census.GeocoderRPS)
	return limits
}
