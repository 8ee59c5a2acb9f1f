package game

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSnapshotHidesHoleCard(t *testing.T) {
	t.Parallel()
	r := stacked(t, 100, 1000, DefaultRules(), "8s", "Th", "8d", "Ac", "Ks", "Qs")
	snap := r.Snapshot()

	if snap.Phase != PhaseAwaitingPlayerAction || snap.CurrentHandIndex != 0 {
		t.Fatalf("phase = %s current = %d", snap.Phase, snap.CurrentHandIndex)
	}
	if len(snap.Dealer.Cards) != 2 || !snap.Dealer.Cards[1].Hidden || snap.Dealer.Cards[1].Rank != "" {
		t.Errorf("hole card leaked: %+v", snap.Dealer.Cards)
	}
	if snap.Dealer.Score != 10 || snap.Dealer.Revealed {
		t.Errorf("dealer view = %+v", snap.Dealer)
	}
	h := snap.Hands[0]
	if h.Score != 16 || !h.CanSplit || !h.CanDouble || h.CanSurrender {
		t.Errorf("hand view = %+v", h)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), `"A"`) {
		t.Errorf("serialized snapshot exposes the hole ace: %s", raw)
	}
	if !strings.Contains(string(raw), `"AWAITING_PLAYER_ACTION"`) {
		t.Errorf("phase not encoded by name: %s", raw)
	}
}

func TestSnapshotAfterSettlement(t *testing.T) {
	t.Parallel()
	r := stacked(t, 100, 1000, DefaultRules(), "8s", "Th", "8d", "9c", "Ks", "Qs")
	if err := r.Split(); err != nil {
		t.Fatal(err)
	}
	_ = r.Stand()
	_ = r.Stand()

	snap := r.Snapshot()
	if snap.CurrentHandIndex != -1 || !snap.Dealer.Revealed || snap.Dealer.Score != 19 {
		t.Errorf("settled view = %+v", snap)
	}
	if snap.Settlement == nil || len(snap.Winnings) != 2 {
		t.Fatalf("missing settlement: %+v", snap)
	}
	for i, w := range snap.Winnings {
		if w != 0 {
			t.Errorf("hand %d winnings = %d", i, w)
		}
	}
	if snap.Hands[0].CanDouble || snap.Hands[1].CanSplit {
		t.Error("no actions are available after settlement")
	}
}
