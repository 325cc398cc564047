package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapUnwrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, CodeCloneFailed, "git clone failed")

	if !stderrors.Is(err, base) {
		t.Fatal("wrapped error should match base via errors.Is")
	}
	if !IsCode(err, CodeCloneFailed) {
		t.Fatal("expected clone_failed code")
	}
	if IsCode(err, CodeBuildFailed) {
		t.Fatal("unexpected build_failed code")
	}
	if CodeOf(err) != CodeCloneFailed {
		t.Fatalf("CodeOf = %q", CodeOf(err))
	}
}

func TestCodeSurvivesFurtherWrapping(t *testing.T) {
	err := New(CodePublishFailed, "put artifact failed")
	outer := fmt.Errorf("task: %w", err)

	if !IsCode(outer, CodePublishFailed) {
		t.Fatal("code should survive fmt.Errorf wrapping")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if CodeOf(stderrors.New("plain")) != CodeUnknown {
		t.Fatal("plain errors should map to unknown")
	}
}
