package domain

import (
	"sort"
	"time"
)

// TimelineKind discriminates timeline item variants.
type TimelineKind string

const (
	TimelineKindMessage TimelineKind = "message"
	TimelineKindHistory TimelineKind = "history"
)

// TimelineItem is one entry in a ticket's chronological feed: either a
// message or a history entry, never both. Kind tells which pointer is set.
type TimelineItem struct {
	Kind    TimelineKind
	At      time.Time
	Message *Message
	History *HistoryEntry
}

// MergeTimeline interleaves messages and history entries into one
// time-ordered feed. The sort is stable so same-instant items keep their
// input order, messages first.
func MergeTimeline(messages []Message, entries []HistoryEntry) []TimelineItem {
	items := make([]TimelineItem, 0, len(messages)+len(entries))
	for i := range messages {
		items = append(items, TimelineItem{
			Kind:    TimelineKindMessage,
			At:      messages[i].CreatedAt,
			Message: &messages[i],
		})
	}
	for i := range entries {
		items = append(items, TimelineItem{
			Kind:    TimelineKindHistory,
			At:      entries[i].ChangedAt,
			History: &entries[i],
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].At.Before(items[j].At)
	})
	return items
}
