package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsThroughWrapping(t *testing.T) {
	base := Authorization(ReasonNotEnrolled, "student %s not enrolled", "s1")
	wrapped := fmt.Errorf("marking failed: %w", base)

	ae, ok := As(wrapped)
	if !ok {
		t.Fatal("As should see through wrapping")
	}
	if ae.Reason != ReasonNotEnrolled || ae.Msg != "student s1 not enrolled" {
		t.Fatalf("unexpected error: %+v", ae)
	}
}

func TestIsKind(t *testing.T) {
	if !IsKind(Validation("x"), KindValidation) {
		t.Fatal("validation kind not detected")
	}
	if IsKind(errors.New("plain"), KindValidation) {
		t.Fatal("plain errors have no kind")
	}
	if IsKind(NotFound("x"), KindValidation) {
		t.Fatal("kinds must not cross-match")
	}
}

func TestUpstreamUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Upstream(UpstreamRefused, cause, "recognition down")
	if !errors.Is(err, cause) {
		t.Fatal("cause must stay on the chain")
	}
	if err.Error() != "recognition down: dial tcp: connection refused" {
		t.Fatalf("message = %q", err.Error())
	}
}
