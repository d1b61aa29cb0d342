package trend

import (
	"time"

	"github.com/google/uuid"
)

// Diff turns the current ranking into snapshot entries by comparing each
// post's rank (1-based position in ranked) with its rank in previous.
// previous maps post id to rank in the last completed snapshot.
//
// rankChange = previousRank - rank, so a positive value means the post moved
// up. NEW and SAME entries always carry a zero change. Posts present in
// previous but missing from ranked are counted as OUT in the summary only.
// A post repeated in ranked keeps its first position.
func Diff(snapshotID uuid.UUID, at time.Time, ranked []RankedPost, previous map[int64]int) ([]Entry, Summary) {
	entries := make([]Entry, 0, len(ranked))
	var sum Summary
	seen := make(map[int64]struct{}, len(ranked))
	for _, p := range ranked {
		if _, dup := seen[p.PostID]; dup {
			continue
		}
		seen[p.PostID] = struct{}{}
		rank := len(entries) + 1
		e := Entry{
			SnapshotID:      snapshotID,
			PostID:          p.PostID,
			Score:           p.Score,
			Rank:            rank,
			PostContent:     p.Content,
			UserName:        p.UserName,
			UserProfileName: p.UserProfileName,
			SnapshotTime:    at,
		}
		prev, ok := previous[p.PostID]
		switch {
		case !ok:
			e.TrendStatus = StatusNew
			sum.New++
		case prev == rank:
			e.TrendStatus = StatusSame
			e.PreviousRank = intPtr(prev)
			sum.Same++
		case rank < prev:
			e.TrendStatus = StatusUp
			e.PreviousRank = intPtr(prev)
			e.RankChange = prev - rank
			sum.Up++
		default:
			e.TrendStatus = StatusDown
			e.PreviousRank = intPtr(prev)
			e.RankChange = prev - rank
			sum.Down++
		}
		entries = append(entries, e)
	}
	sum.Total = len(entries)
	for id := range previous {
		if _, ok := seen[id]; !ok {
			sum.Out++
		}
	}
	return entries, sum
}

func intPtr(v int) *int { return &v }
