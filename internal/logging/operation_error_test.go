package logging

import (
	"errors"
	"testing"
)

var errSentinel = errors.New("sentinel")

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("op", "req", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorUnwrapsToSentinel(t *testing.T) {
	err := NewOperationError("vision.load_model", "req-1", errSentinel)
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected errors.Is to match sentinel, got %v", err)
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "vision.load_model" || opErr.RequestID != "req-1" {
		t.Fatalf("unexpected fields: %+v", opErr)
	}
}

func TestOperationErrorMessage(t *testing.T) {
	withID := NewOperationError("op", "abc", errSentinel).Error()
	if withID != "op (request_id=abc): sentinel" {
		t.Fatalf("unexpected message: %q", withID)
	}
	withoutID := NewOperationError("op", "", errSentinel).Error()
	if withoutID != "op: sentinel" {
		t.Fatalf("unexpected message: %q", withoutID)
	}
}
