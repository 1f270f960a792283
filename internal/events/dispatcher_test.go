package events

import (
	"errors"
	"testing"
)

func TestDispatch_FiltersAndOrders(t *testing.T) {
	d := NewEventDispatcher()

	var got []string
	d.Register(&FuncObserver{Name: "first", Fn: func(e Event) error {
		got = append(got, "first:"+e.Type)
		return nil
	}})
	d.Register(&FuncObserver{Name: "decks-only", Types: []string{DeckUpdated}, Fn: func(e Event) error {
		got = append(got, "decks:"+e.Type)
		return errors.New("ignored")
	}})

	d.Dispatch(Event{Type: SearchSettled})
	d.Dispatch(Event{Type: DeckUpdated})

	want := []string{"first:" + SearchSettled, "first:" + DeckUpdated, "decks:" + DeckUpdated}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUnregister(t *testing.T) {
	d := NewEventDispatcher()
	calls := 0
	obs := &FuncObserver{Name: "counter", Fn: func(Event) error { calls++; return nil }}

	d.Register(obs)
	d.Register(NewLoggingObserver(false))
	if d.ObserverCount() != 2 {
		t.Fatalf("expected 2 observers, got %d", d.ObserverCount())
	}

	d.Unregister(obs)
	d.Dispatch(Event{Type: FocusChanged})

	if calls != 0 {
		t.Errorf("unregistered observer called %d times", calls)
	}
	if d.ObserverCount() != 1 {
		t.Errorf("expected 1 observer, got %d", d.ObserverCount())
	}
}

func TestTyped(t *testing.T) {
	e := Event{Type: FocusChanged, Data: FocusChangedEvent{DeckID: "d1"}}

	payload, ok := Typed[FocusChangedEvent](e)
	if !ok || payload.DeckID != "d1" {
		t.Errorf("Typed returned %+v, %v", payload, ok)
	}
	if _, ok := Typed[DeckDeletedEvent](e); ok {
		t.Error("Typed should fail for the wrong payload type")
	}
}

func TestLoggingObserver_ShouldHandle(t *testing.T) {
	quiet := NewLoggingObserver(false)
	if quiet.ShouldHandle(BusyChanged) {
		t.Error("quiet logger should skip busy events")
	}
	if !quiet.ShouldHandle(DeckDeleted) {
		t.Error("quiet logger should log deck events")
	}
	if !NewLoggingObserver(true).ShouldHandle(BusyChanged) {
		t.Error("verbose logger should log everything")
	}
}
