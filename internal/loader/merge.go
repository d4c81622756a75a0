package loader

import "github.com/DelicateHug/DMaker-sub000/internal/feature"

// Protector reports which features carry a recent local write
type Protector interface {
	IsProtected(featureID string) bool
}

// Merge reconciles a full server result with the local view.
//
// The server is authoritative for set membership and for every field,
// except that a protected feature keeps its local status, startedAt and
// completedAt. Features missing from the server result are dropped.
func Merge(server, local []feature.Feature, ledger Protector) []feature.Feature {
	byID := index(local)

	out := make([]feature.Feature, 0, len(server))
	seen := make(map[string]bool, len(server))
	for _, sf := range server {
		if seen[sf.ID] {
			continue
		}
		seen[sf.ID] = true

		merged := sf.Clone()
		if lf, ok := byID[sf.ID]; ok {
			merged = keepProtected(merged, lf, ledger)
		}
		out = append(out, merged)
	}
	return out
}

// MergeSummaries reconciles a summary result with the local view.
// Fields outside the summary representation are kept from the local copy
// when one exists; protection applies exactly as in Merge.
func MergeSummaries(server, local []feature.Feature, ledger Protector) []feature.Feature {
	byID := index(local)

	out := make([]feature.Feature, 0, len(server))
	seen := make(map[string]bool, len(server))
	for _, sf := range server {
		if seen[sf.ID] {
			continue
		}
		seen[sf.ID] = true

		lf, ok := byID[sf.ID]
		if !ok {
			out = append(out, sf.Clone())
			continue
		}
		out = append(out, keepProtected(lf.WithSummary(sf), lf, ledger))
	}
	return out
}

func keepProtected(merged, local feature.Feature, ledger Protector) feature.Feature {
	if ledger == nil || !ledger.IsProtected(merged.ID) {
		return merged
	}
	l := local.Clone()
	merged.Status = l.Status
	merged.StartedAt = l.StartedAt
	merged.CompletedAt = l.CompletedAt
	return merged
}

func index(features []feature.Feature) map[string]feature.Feature {
	m := make(map[string]feature.Feature, len(features))
	for _, f := range features {
		m[f.ID] = f
	}
	return m
}
