package dueldomain

import "testing"

func TestSideFor(t *testing.T) {
	t.Run("matches challenger", func(t *testing.T) {
		side, ok := SideFor(2, 5, 2)
		if !ok || side != SideChallenger {
			t.Fatalf("expected challenger match, got %q ok=%v", side, ok)
		}
	})

	t.Run("matches defender", func(t *testing.T) {
		side, ok := SideFor(2, 5, 5)
		if !ok || side != SideDefender {
			t.Fatalf("expected defender match, got %q ok=%v", side, ok)
		}
	})

	t.Run("rejects outsider", func(t *testing.T) {
		if _, ok := SideFor(2, 5, 7); ok {
			t.Fatalf("participant 7 is not a side of this duel")
		}
	})
}

func TestStatusTerminal(t *testing.T) {
	if StatusActive.Terminal() {
		t.Fatalf("ACTIVE must accept further mutation")
	}
	if !StatusResolved.Terminal() || !StatusCancelled.Terminal() {
		t.Fatalf("RESOLVED and CANCELLED must be terminal")
	}
}

func TestResolvable(t *testing.T) {
	if Resolvable("", "") || Resolvable("strike", "") || Resolvable("", "parry") {
		t.Fatalf("duel must not resolve before both decisions are in")
	}
	if !Resolvable("strike", "parry") {
		t.Fatalf("duel with both decisions present must be resolvable")
	}
}
