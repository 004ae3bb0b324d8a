package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestTaxonomyMatching(t *testing.T) {
	if !errors.Is(ErrCalendarNotFound, ErrNotFound) {
		t.Fatalf("calendar not found must match ErrNotFound")
	}
	wrapped := fmt.Errorf("book: %w", Invalid("customer.email", "is required"))
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatalf("expected validation match")
	}
	var ve *ValidationError
	if !errors.As(wrapped, &ve) || ve.Field != "customer.email" {
		t.Fatalf("expected ValidationError with field, got %v", wrapped)
	}
	if errors.Is(NotFound("service", "s1"), ErrValidation) {
		t.Fatalf("not found must not match validation")
	}
	if !errors.Is(Transient("list", errors.New("timeout")), ErrTransientStore) {
		t.Fatalf("expected transient match")
	}
}
