package services

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FilterByLabel keeps the views whose label fuzzily matches query, closest
// matches first. An empty query returns views unchanged.
func FilterByLabel(views []NodeView, query string) []NodeView {
	query = strings.TrimSpace(query)
	if query == "" {
		return views
	}
	labels := make([]string, len(views))
	for i, v := range views {
		labels[i] = v.Label
	}
	ranks := fuzzy.RankFindNormalizedFold(query, labels)
	sort.Stable(ranks)

	out := make([]NodeView, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, views[r.OriginalIndex])
	}
	return out
}
