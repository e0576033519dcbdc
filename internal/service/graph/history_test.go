package graph

import (
	"testing"

	"loom/internal/domain/models"
)

func snap(marker string) *models.HistorySnapshot {
	return &models.HistorySnapshot{
		Cards: map[string]*models.Card{marker: {ID: marker}},
	}
}

func marker(s *models.HistorySnapshot) string {
	for id := range s.Cards {
		return id
	}
	return ""
}

func TestHistoryLinearUndoRedo(t *testing.T) {
	h := newHistory(10)
	h.reset(snap("s0"))
	h.push(snap("s1"))
	h.push(snap("s2"))

	if !h.canUndo() || h.canRedo() {
		t.Fatalf("canUndo=%v canRedo=%v, want true/false", h.canUndo(), h.canRedo())
	}
	if got := marker(h.undo()); got != "s1" {
		t.Errorf("first undo = %s, want s1", got)
	}
	if got := marker(h.undo()); got != "s0" {
		t.Errorf("second undo = %s, want s0", got)
	}
	if h.undo() != nil {
		t.Error("undo past the start returned a snapshot")
	}
	if got := marker(h.redo()); got != "s1" {
		t.Errorf("redo = %s, want s1", got)
	}
}

func TestHistoryPushTruncatesRedoTail(t *testing.T) {
	h := newHistory(10)
	h.reset(snap("s0"))
	h.push(snap("s1"))
	h.push(snap("s2"))
	h.undo()
	h.undo()

	h.push(snap("fork"))
	if h.canRedo() {
		t.Error("redo tail survived a new mutation")
	}
	if got := marker(h.undo()); got != "s0" {
		t.Errorf("undo after fork = %s, want s0", got)
	}
	if got := marker(h.redo()); got != "fork" {
		t.Errorf("redo after fork = %s, want fork", got)
	}
}

func TestHistoryEvictsOldestBeyondMax(t *testing.T) {
	h := newHistory(3)
	h.reset(snap("s0"))
	for i := 1; i <= 5; i++ {
		h.push(snap("s" + string(rune('0'+i))))
	}

	// Only the newest 3 survive: s3, s4, s5.
	undos := 0
	for h.canUndo() {
		h.undo()
		undos++
	}
	if undos != 2 {
		t.Errorf("undo depth = %d, want 2 with max 3", undos)
	}
	if got := marker(h.snapshots[h.index]); got != "s3" {
		t.Errorf("oldest surviving snapshot = %s, want s3", got)
	}
}

func TestHistoryAmendReplacesCurrentSlot(t *testing.T) {
	h := newHistory(10)
	h.reset(snap("s0"))
	h.push(snap("s1"))

	h.amend(snap("s1-drifted"))
	h.push(snap("s2"))

	if got := marker(h.undo()); got != "s1-drifted" {
		t.Errorf("undo = %s, want amended snapshot", got)
	}
}
