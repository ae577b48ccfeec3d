package domain

import (
	"slices"
	"sort"
	"strings"
)

// SiteAlerts is one site's current alert list, the input unit of MergeAlerts.
type SiteAlerts struct {
	SiteID   string
	SiteName string
	Alerts   []Alert
}

// MergedAlert is an alert shared by one or more sites. Site holds the
// comma-joined site names in the order sites were folded in.
type MergedAlert struct {
	Alert
	Sites []string `json:"sites"`
}

// alertKey groups alerts describing the same hazard class.
type alertKey struct {
	description string
	typ         AlertType
}

// MergeAlerts folds alerts across sites by (description, type). The first
// occurrence of a key is kept as the representative; later sites are appended
// to its site list once each. The result is stably sorted Warning, Watch,
// Advisory, Statement. The key set does not depend on input order; the order
// of names inside Site does.
func MergeAlerts(perSite []SiteAlerts) []MergedAlert {
	index := make(map[alertKey]int)
	merged := []MergedAlert{}

	for _, sa := range perSite {
		for _, a := range sa.Alerts {
			k := alertKey{description: a.Description, typ: a.Type}
			i, ok := index[k]
			if !ok {
				m := MergedAlert{Alert: a, Sites: []string{sa.SiteName}}
				m.Site = sa.SiteName
				index[k] = len(merged)
				merged = append(merged, m)
				continue
			}
			if slices.Contains(merged[i].Sites, sa.SiteName) {
				continue
			}
			merged[i].Sites = append(merged[i].Sites, sa.SiteName)
			merged[i].Site = strings.Join(merged[i].Sites, ", ")
		}
	}

	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].Type.Rank() < merged[b].Type.Rank()
	})
	return merged
}
