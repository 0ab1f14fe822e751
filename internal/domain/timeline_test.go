package domain

import (
	"testing"
	"time"
)

func TestMergeTimeline(t *testing.T) {
	base := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

	messages := []Message{
		{ID: 1, Body: "first", CreatedAt: base},
		{ID: 2, Body: "third", CreatedAt: base.Add(2 * time.Hour)},
	}
	entries := []HistoryEntry{
		{ID: 10, FieldName: "status", ChangedAt: base.Add(time.Hour)},
		{ID: 11, FieldName: "priority", ChangedAt: base.Add(3 * time.Hour)},
	}

	items := MergeTimeline(messages, entries)
	if len(items) != 4 {
		t.Fatalf("items = %d, want 4", len(items))
	}

	wantKinds := []TimelineKind{TimelineKindMessage, TimelineKindHistory, TimelineKindMessage, TimelineKindHistory}
	for i, kind := range wantKinds {
		if items[i].Kind != kind {
			t.Errorf("items[%d].Kind = %q, want %q", i, items[i].Kind, kind)
		}
	}
	if items[0].Message == nil || items[0].Message.ID != 1 {
		t.Error("first item is not message 1")
	}
	if items[3].History == nil || items[3].History.FieldName != "priority" {
		t.Error("last item is not the priority change")
	}
}

func TestMergeTimelineSameInstantKeepsMessagesFirst(t *testing.T) {
	at := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

	items := MergeTimeline(
		[]Message{{ID: 1, CreatedAt: at}},
		[]HistoryEntry{{ID: 10, ChangedAt: at}},
	)
	if items[0].Kind != TimelineKindMessage || items[1].Kind != TimelineKindHistory {
		t.Errorf("same-instant order = [%q, %q], want message then history", items[0].Kind, items[1].Kind)
	}
}

func TestMergeTimelineEmptyInputs(t *testing.T) {
	if items := MergeTimeline(nil, nil); len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}
