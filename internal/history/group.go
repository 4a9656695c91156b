package history

import (
	"time"

	"github.com/qwikask/qwikask/internal/model"
)

// GroupByRecency buckets conversations by the calendar day of UpdatedAt in
// now's location. Today starts at local midnight; yesterday is the calendar
// day before it. Input order is preserved inside each bucket.
func GroupByRecency(convs []model.Conversation, now time.Time) model.GroupedConversationsResponse {
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	out := model.GroupedConversationsResponse{
		Today:     []model.Conversation{},
		Yesterday: []model.Conversation{},
		Older:     []model.Conversation{},
	}

	for _, c := range convs {
		updated := time.UnixMilli(c.UpdatedAt)
		switch {
		case !updated.Before(todayStart):
			out.Today = append(out.Today, c)
		case !updated.Before(yesterdayStart):
			out.Yesterday = append(out.Yesterday, c)
		default:
			out.Older = append(out.Older, c)
		}
	}
	return out
}
