package model

import "testing"

func TestRepoWatch_WithProgressAlwaysSetsMarker(t *testing.T) {
	r := RepoWatch{FullName: "octo/repo"}
	if r.ReadMarker() != "" {
		t.Errorf("ReadMarker() on nil = %q, want empty", r.ReadMarker())
	}

	got := r.WithProgress("", 2)
	if got.LastReadCommitSHA == nil {
		t.Fatal("WithProgress(\"\", 2) left LastReadCommitSHA nil")
	}
	if r.LastReadCommitSHA != nil {
		t.Error("WithProgress mutated the receiver")
	}
	if got.UnreadCount != 2 {
		t.Errorf("UnreadCount = %d, want 2", got.UnreadCount)
	}
}

func TestDevWatch_WithKey(t *testing.T) {
	d := DevWatch{LastReadID: "ev_1", UnreadCount: 3}.WithKey("alice")
	if d.Key() != "alice" || d.ReadMarker() != "ev_1" || d.Unread() != 3 {
		t.Errorf("got %+v", d)
	}
}
