package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("create invoice: %w", NotFound("product %d does not exist", 9))
	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("expected not_found, got %s", got)
	}
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("expected internal for untyped error, got %s", got)
	}
}

func TestInsufficientStockMessageNamesProduct(t *testing.T) {
	err := InsufficientStock(4, "Chaise", 2, 5)
	if !strings.Contains(err.Message, `"Chaise"`) || !strings.Contains(err.Message, "id 4") {
		t.Fatalf("message does not identify product: %q", err.Message)
	}
	if err.Details["available"] != "2" || err.Details["requested"] != "5" {
		t.Fatalf("unexpected details: %+v", err.Details)
	}
}

func TestInternalAndTransientHideCause(t *testing.T) {
	cause := errors.New("pq: password authentication failed for user root")

	for _, err := range []*Error{Internal(cause), Transient(cause)} {
		if strings.Contains(err.Error(), "password") {
			t.Fatalf("%s error leaks cause: %q", err.Kind, err.Error())
		}
		if !errors.Is(err, cause) {
			t.Fatalf("%s error should unwrap to its cause", err.Kind)
		}
	}
	if !Transient(cause).Retryable() || Internal(cause).Retryable() {
		t.Fatalf("only transient errors are retryable")
	}
}
