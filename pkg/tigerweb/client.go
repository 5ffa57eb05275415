// Package tigerweb queries the Census TIGERweb ArcGIS map services for
// boundary geometry and returns it as GeoJSON features.
package tigerweb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/quietcreep/citysdk/internal/fetcher"
	"github.com/quietcreep/citysdk/internal/geography"
)

// SpatialRel is an ArcGIS spatial relationship.
type SpatialRel string

const (
	Intersects SpatialRel = "esriSpatialRelIntersects"
	Contains   SpatialRel = "esriSpatialRelContains"
)

// DefaultBaseURL is the public TIGERweb services root.
const DefaultBaseURL = "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb"

// FormPoster posts a form and decodes a JSON response.
type FormPoster interface {
	PostFormJSON(ctx context.Context, rawURL string, form url.Values, v any) error
}

// Querier is the geometry source used by the census resolver.
type Querier interface {
	QueryPoint(ctx context.Context, level geography.Level, pt geography.Point) ([]*geojson.Feature, error)
	QueryPolygon(ctx context.Context, level geography.Level, area geom.T, rel SpatialRel) ([]*geojson.Feature, error)
	QueryWhere(ctx context.Context, level geography.Level, where string) ([]*geojson.Feature, error)
}

// Client queries one map service vintage.
type Client struct {
	f       FormPoster
	base    string
	vintage geography.Vintage
}

// New returns a client for the named vintage under base. An empty base
// uses DefaultBaseURL.
func New(f FormPoster, base, vintage string) (*Client, error) {
	v, err := geography.LookupVintage(vintage)
	if err != nil {
		return nil, err
	}
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{f: f, base: base, vintage: v}, nil
}

type queryResponse struct {
	Features []Feature `json:"features"`
	Error    *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

// QueryPoint returns the level's features intersecting pt.
func (c *Client) QueryPoint(ctx context.Context, level geography.Level, pt geography.Point) ([]*geojson.Feature, error) {
	form := baseForm()
	form.Set("geometry", formatCoord(pt.Lng)+","+formatCoord(pt.Lat))
	form.Set("geometryType", "esriGeometryPoint")
	form.Set("spatialRel", string(Intersects))
	return c.query(ctx, level, form)
}

// QueryPolygon returns the level's features related to area by rel.
func (c *Client) QueryPolygon(ctx context.Context, level geography.Level, area geom.T, rel SpatialRel) ([]*geojson.Feature, error) {
	g, err := Marshal(area)
	if err != nil {
		return nil, err
	}
	form := baseForm()
	form.Set("geometry", g)
	form.Set("geometryType", "esriGeometryPolygon")
	form.Set("spatialRel", string(rel))
	return c.query(ctx, level, form)
}

// QueryWhere returns the level's features matching an attribute filter
// such as STATE='11' AND COUNTY='001'.
func (c *Client) QueryWhere(ctx context.Context, level geography.Level, where string) ([]*geojson.Feature, error) {
	if where == "" {
		return nil, eris.New("tigerweb: empty where clause")
	}
	form := baseForm()
	form.Set("where", where)
	form.Set("returnGeometry", "true")
	return c.query(ctx, level, form)
}

func (c *Client) query(ctx context.Context, level geography.Level, form url.Values) ([]*geojson.Feature, error) {
	layer, ok := c.vintage.Layer(level)
	if !ok {
		return nil, eris.Errorf("tigerweb: %s has no layer for level %q", c.vintage.Name, level)
	}
	endpoint := c.vintage.QueryURL(c.base, layer)

	var resp queryResponse
	if err := c.f.PostFormJSON(ctx, endpoint, form, &resp); err != nil {
		return nil, eris.Wrapf(err, "tigerweb: query %s layer %d", c.vintage.Service, layer)
	}
	if resp.Error != nil {
		return nil, &fetcher.UpstreamError{
			URL:        endpoint,
			StatusCode: resp.Error.Code,
			Err:        eris.Errorf("arcgis error %d: %s", resp.Error.Code, resp.Error.Message),
		}
	}

	out := make([]*geojson.Feature, 0, len(resp.Features))
	for i, f := range resp.Features {
		g, err := ToGeom(f.Geometry)
		if err != nil {
			zap.L().Debug("tigerweb: feature without usable geometry",
				zap.String("service", c.vintage.Service),
				zap.Int("index", i),
				zap.Error(err),
			)
		}
		out = append(out, &geojson.Feature{
			ID:         featureID(f.Attributes),
			Geometry:   g,
			Properties: f.Attributes,
		})
	}
	zap.L().Debug("tigerweb: query complete",
		zap.String("service", c.vintage.Service),
		zap.String("level", string(level)),
		zap.Int("features", len(out)),
	)
	return out, nil
}

// Pool hands out one Client per vintage, sharing a transport.
type Pool struct {
	f    FormPoster
	base string

	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool returns a Pool over base.
func NewPool(f FormPoster, base string) *Pool {
	return &Pool{f: f, base: base, clients: make(map[string]*Client)}
}

// Vintage returns the client for the named vintage, "" meaning current.
func (p *Pool) Vintage(name string) (Querier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[name]; ok {
		return c, nil
	}
	c, err := New(p.f, p.base, name)
	if err != nil {
		return nil, err
	}
	p.clients[name] = c
	return c, nil
}

func baseForm() url.Values {
	form := url.Values{}
	form.Set("f", "json")
	form.Set("where", "")
	form.Set("outFields", "*")
	form.Set("inSR", "4326")
	form.Set("outSR", "4326")
	return form
}

func featureID(attrs map[string]any) string {
	for _, k := range []string{"GEOID", "OBJECTID"} {
		switch v := attrs[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func formatCoord(f float64) string {
	return fmt.Sprint(f)
}
