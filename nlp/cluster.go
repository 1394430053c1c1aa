package nlp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"pulse/llm"
)

// Group is one named cluster proposed by the model.
type Group struct {
	Name        string `json:"name" jsonschema:"required,description=Short descriptive cluster name"`
	Description string `json:"description" jsonschema:"description=One sentence description"`
	FeedbackIDs []uint `json:"feedback_ids" jsonschema:"required,description=Ids of the feedback items in this cluster"`
}

type clusterResponse struct {
	Clusters []Group `json:"clusters" jsonschema:"required,minItems=1,maxItems=5"`
}

// Clusterer groups feedback by theme. It has no rule-based fallback: any
// failure yields no groups.
type Clusterer struct {
	gen llm.Generator
	log zerolog.Logger
}

// NewClusterer returns a Clusterer over gen.
func NewClusterer(gen llm.Generator, log zerolog.Logger) *Clusterer {
	if gen == nil {
		gen = llm.Disabled()
	}
	return &Clusterer{gen: gen, log: log}
}

// Cluster maps cluster name to member ids.
func (c *Clusterer) Cluster(ctx context.Context, items []Item) map[string][]uint {
	out := map[string][]uint{}
	for _, g := range c.Groups(ctx, items) {
		out[g.Name] = g.FeedbackIDs
	}
	return out
}

// Groups returns the proposed clusters in response order. Ids the model
// invents are dropped, duplicates within a cluster are collapsed and a
// repeated name replaces the earlier entry.
func (c *Clusterer) Groups(ctx context.Context, items []Item) []Group {
	if len(items) == 0 {
		return nil
	}

	raw, err := c.gen.Generate(ctx, clusterPrompt(items), ClusterTemperature)
	if err != nil {
		c.log.Warn().Err(err).Int("items", len(items)).Msg("clustering request failed")
		return nil
	}

	var resp struct {
		Clusters []json.RawMessage `json:"clusters"`
	}
	if err := DecodeJSON(raw, &resp); err != nil {
		c.log.Warn().Err(err).Msg("clustering response unparsable")
		return nil
	}

	known := make(map[uint]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}

	var groups []Group
	index := map[string]int{}
	for _, entry := range resp.Clusters {
		var g Group
		if err := json.Unmarshal(entry, &g); err != nil {
			c.log.Debug().Err(err).Msg("skipping malformed cluster")
			continue
		}
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" || g.FeedbackIDs == nil {
			continue
		}
		g.FeedbackIDs = members(g.FeedbackIDs, known)
		if len(g.FeedbackIDs) == 0 {
			continue
		}

		if i, ok := index[g.Name]; ok {
			groups[i] = g
			continue
		}
		index[g.Name] = len(groups)
		groups = append(groups, g)
	}
	return groups
}

func members(ids []uint, known map[uint]bool) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
