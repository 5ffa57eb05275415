package censusapi

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
)

// Variable describes one dataset variable.
type Variable struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	Concept       string `json:"concept,omitempty"`
	PredicateType string `json:"predicateType,omitempty"`
	Group         string `json:"group,omitempty"`
}

// Variables fetches the dataset's variables.json dictionary, sorted by name.
func (c *Client) Variables(ctx context.Context, year int, dataset string) ([]Variable, error) {
	var doc struct {
		Variables map[string]Variable `json:"variables"`
	}
	endpoint := fmt.Sprintf("%s/%d/%s/variables.json", c.base, year, dataset)
	if err := c.f.GetRawQueryJSON(ctx, endpoint, "", &doc); err != nil {
		return nil, eris.Wrapf(err, "censusapi: variables %d/%s", year, dataset)
	}

	out := make([]Variable, 0, len(doc.Variables))
	for name, v := range doc.Variables {
		v.Name = name
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
