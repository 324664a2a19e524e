package ingestion

import "testing"

func TestSeenCache(t *testing.T) {
	s := NewSeenCache(4)

	if s.Seen("a#0") {
		t.Error("first sighting reported as seen")
	}
	if !s.Seen("a#0") {
		t.Error("second sighting not reported as seen")
	}
	if s.Size() != 1 {
		t.Errorf("size = %d, want 1", s.Size())
	}
}

func TestSeenCacheEvictsOldest(t *testing.T) {
	s := NewSeenCache(2)
	s.Seen("a#0")
	s.Seen("b#0")
	s.Seen("a#0") // promote a, b is now oldest
	s.Seen("c#0") // evicts b

	if s.Seen("b#0") {
		t.Error("evicted key still seen")
	}
	if !s.Seen("a#0") {
		t.Error("promoted key evicted")
	}
	if s.Evictions() < 1 {
		t.Errorf("evictions = %d, want at least 1", s.Evictions())
	}
}

func TestHandleDropsRedelivery(t *testing.T) {
	c, st := testClassifier(t)
	updates := make(chan StateUpdate, 4)
	c.WithUpdates(updates)

	msg := rawMsg(t, SubjectCreated+".stubamm", recordPayload("aa11", "d879"))
	c.Handle(msg)
	c.Handle(msg)

	pools, _ := st.Counts()
	if pools != 1 {
		t.Fatalf("pools = %d, want 1", pools)
	}
	if got := len(updates); got != 1 {
		t.Errorf("updates emitted = %d, want 1", got)
	}
}
