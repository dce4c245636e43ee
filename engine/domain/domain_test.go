package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEffectiveText(t *testing.T) {
	p := Post{Text: "short", FullText: "the full version"}
	if p.EffectiveText() != "the full version" {
		t.Errorf("EffectiveText = %q", p.EffectiveText())
	}
	p.FullText = ""
	if p.EffectiveText() != "short" {
		t.Errorf("EffectiveText = %q", p.EffectiveText())
	}
}

func TestValidatePost(t *testing.T) {
	valid := Post{ID: "1", CreatedAt: time.Now()}
	if err := ValidatePost(valid); err != nil {
		t.Errorf("valid post rejected: %v", err)
	}

	if err := ValidatePost(Post{CreatedAt: time.Now()}); !errors.Is(err, ErrMissingPostID) {
		t.Errorf("err = %v, want ErrMissingPostID", err)
	}
	if err := ValidatePost(Post{ID: "1"}); !errors.Is(err, ErrBadTimestamp) {
		t.Errorf("err = %v, want ErrBadTimestamp", err)
	}
}

func TestValidateAccount(t *testing.T) {
	if err := ValidateAccount(Account{Username: "alice"}); err != nil {
		t.Errorf("valid account rejected: %v", err)
	}
	err := ValidateAccount(Account{Username: "   "})
	if !errors.Is(err, ErrNoAccount) {
		t.Errorf("err = %v, want ErrNoAccount", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "username" {
		t.Errorf("err = %v, want ValidationError on username", err)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	tests := map[JobStatus]bool{
		JobPending:    false,
		JobProcessing: false,
		JobCompleted:  true,
		JobFailed:     true,
	}
	for s, want := range tests {
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("id", "x1", ErrMissingPostID)
	msg := err.Error()
	for _, want := range []string{"id", "x1", ErrMissingPostID.Error()} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if !errors.Is(err, ErrMissingPostID) {
		t.Error("Unwrap broken")
	}
}
