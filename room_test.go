package workos

import (
	"context"
	"testing"

	"github.com/madhatter5501/WorkOS/kanban"
)

func TestRoom(t *testing.T) {
	roster := []kanban.User{{ID: "u1", Name: "Kiki"}, {ID: "u2", Name: "Stéphane"}}
	room := NewRoom(roster, testLogger())

	if room.URL() != "https://meet.jit.si/OracleNavigatorRoom" {
		t.Errorf("unexpected URL %s", room.URL())
	}
	if _, ok := room.ActiveSpeaker(); ok {
		t.Error("no speaker before the first rotation")
	}

	_ = room.Rotate(context.Background())
	first, ok := room.ActiveSpeaker()
	if !ok || (first.ID != "u1" && first.ID != "u2") {
		t.Fatalf("expected a roster member, got %+v", first)
	}

	room.SetLive(true)
	for range 20 {
		_ = room.Rotate(context.Background())
		if got, _ := room.ActiveSpeaker(); got.ID != first.ID {
			t.Fatal("live mode must freeze the speaker")
		}
	}
}
