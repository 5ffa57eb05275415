package census

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quietcreep/citysdk/internal/geography"
	"github.com/quietcreep/citysdk/internal/metrics"
)

// DefaultSupplementalConcurrency bounds supplemental requests per
// collection when no limit is configured.
const DefaultSupplementalConcurrency = 8

// Reconciler joins statistics records onto boundary features.
type Reconciler struct {
	resolve     func(ctx context.Context, req *Request) (*Request, error)
	concurrency int
	metrics     *metrics.Metrics
}

// NewReconciler returns a reconciler that issues supplemental requests
// through resolve, at most concurrency at a time.
func NewReconciler(resolve func(ctx context.Context, req *Request) (*Request, error), concurrency int, m *metrics.Metrics) *Reconciler {
	if concurrency <= 0 {
		concurrency = DefaultSupplementalConcurrency
	}
	return &Reconciler{resolve: resolve, concurrency: concurrency, metrics: m}
}

// Reconcile merges req.Data into fc. A feature matching exactly one record
// takes its values; a feature matching none gets a supplemental request of
// its own; a feature matching several is left alone and listed in
// fc.Ambiguous. Totals sum req.Variables over every merged feature.
//
// Any supplemental failure fails the whole collection and leaves fc
// unmodified.
func (r *Reconciler) Reconcile(ctx context.Context, req *Request, fc *FeatureCollection) error {
	if req.Data == nil {
		return nil
	}
	log := logger(ctx).With(zap.String("level", string(req.Level)))

	merged := make([]Record, len(fc.Features))
	var ambiguous []int
	var missing []int
	for i, f := range fc.Features {
		matches := matchRecords(req.Level, f, req.Data)
		switch len(matches) {
		case 0:
			missing = append(missing, i)
		case 1:
			merged[i] = matches[0]
		default:
			ambiguous = append(ambiguous, i)
			log.Warn("census: feature matched several records",
				zap.Int("feature", i),
				zap.Int("matches", len(matches)),
				zap.Error(ErrAmbiguousReconciliation),
			)
			r.metrics.AmbiguousMatch()
		}
	}

	if len(missing) > 0 {
		res, _ := ctx.Value(resolutionKey{}).(*resolution)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, i := range missing {
			sub := supplementalRequest(req, fc.Features[i])
			g.Go(func() error {
				if res != nil {
					res.inFlight.Add(1)
					defer res.inFlight.Add(-1)
				}
				r.metrics.SupplementalRequest()
				out, err := r.resolve(gctx, sub)
				if err != nil {
					return eris.Wrapf(err, "census: supplemental request for feature %d", i)
				}
				if len(out.Data) > 0 {
					merged[i] = out.Data[0]
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		log.Debug("census: supplemental requests done", zap.Int("count", len(missing)))
	}

	if fc.Totals == nil {
		fc.Totals = map[string]float64{}
	}
	for _, v := range req.Variables {
		if _, ok := fc.Totals[v]; !ok {
			fc.Totals[v] = 0
		}
	}
	for i, rec := range merged {
		if rec == nil {
			continue
		}
		f := fc.Features[i]
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		for k, v := range rec {
			f.Properties[k] = v
		}
		for _, v := range req.Variables {
			fc.Totals[v] += number(rec[v])
		}
	}
	fc.Ambiguous = append(fc.Ambiguous, ambiguous...)
	return nil
}

// matchRecords returns the records whose identifier at level equals the
// feature's. Tracts and block groups are only unique within their county
// and tract, so those must match too. Every record matches a nation
// feature.
func matchRecords(level geography.Level, f *geojson.Feature, data []Record) []Record {
	if level == geography.Nation {
		return data
	}
	keys := []geography.Level{level}
	if level == geography.Tract || level == geography.BlockGroup {
		keys = append(keys, geography.Tract, geography.County)
	}

	var out []Record
	for _, rec := range data {
		ok := true
		for _, k := range keys {
			fv := property(f, k.PropertyKey())
			if fv == "" || fv != recordID(rec, k) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

// supplementalRequest scopes a statistics request to one feature's own
// identifiers. It inherits the parent's year, dataset and vintage.
func supplementalRequest(parent *Request, f *geojson.Feature) *Request {
	var fips geography.FIPS
	for _, l := range identifierColumns {
		fips.Set(l, property(f, l.PropertyKey()))
	}
	return &Request{
		Year:      parent.Year,
		API:       parent.API,
		Level:     parent.Level,
		Variables: append([]string(nil), parent.Variables...),
		Vintage:   parent.Vintage,
		Location:  Identifiers{},
		FIPS:      fips,
	}
}

func property(f *geojson.Feature, key string) string {
	if f == nil || f.Properties == nil || key == "" {
		return ""
	}
	return stringify(f.Properties[key])
}

func recordID(rec Record, l geography.Level) string {
	return stringify(rec[string(l)])
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.0f", x)
	}
	return fmt.Sprint(v)
}
