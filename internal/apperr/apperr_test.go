package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validationf("name is required"), Validation},
		{"not found", NotFoundf("project %d not found", 7), NotFound},
		{"conflict", Conflictf("branch exists"), Conflict},
		{"permission", Permissionf("not the owner"), Permission},
		{"wrapped", fmt.Errorf("listing: %w", NotFoundf("gone")), NotFound},
		{"untyped", errors.New("disk on fire"), Transaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Permissionf("nope"))
	if !IsKind(err, Permission) {
		t.Error("expected Permission kind through wrapping")
	}
	if IsKind(err, NotFound) {
		t.Error("matched wrong kind")
	}
	if IsKind(errors.New("plain"), Permission) {
		t.Error("plain error matched a kind")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(Transaction, nil, "ignored") != nil {
		t.Error("Wrap with nil cause should return nil")
	}

	cause := errors.New("constraint failed")
	err := Wrap(Conflict, cause, "create branch %q", "main")
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if KindOf(err) != Conflict {
		t.Errorf("KindOf = %v, want Conflict", KindOf(err))
	}
	want := `conflict: create branch "main": constraint failed`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
