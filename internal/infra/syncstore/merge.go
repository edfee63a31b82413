package syncstore

import "github.com/rallylog/rallylog/internal/domain"

// Merge reconciles local and remote snapshots. Every id from either side is
// kept; when both sides hold an id the remote record replaces the local one,
// whatever the timestamps say. The result is sorted newest first.
func Merge(local, remote []domain.PointRecord) []domain.PointRecord {
	byID := make(map[string]domain.PointRecord, len(local)+len(remote))
	for _, r := range local {
		byID[r.ID] = r
	}
	for _, r := range remote {
		byID[r.ID] = r
	}

	out := make([]domain.PointRecord, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	domain.SortByTimestampDesc(out)
	return out
}

// chronological returns a copy of recs ordered oldest first, the order the
// local log is kept in.
func chronological(recs []domain.PointRecord) []domain.PointRecord {
	out := make([]domain.PointRecord, len(recs))
	copy(out, recs)
	domain.SortByTimestampAsc(out)
	return out
}
