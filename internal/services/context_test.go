package services_test

import (
	"context"
	"testing"

	"habla/internal/services"
)

func TestContextAnnotations(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id on empty context")
	}

	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithStep(ctx, "mux")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %q %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "mux" {
		t.Fatalf("unexpected step: %q %v", step, ok)
	}
}
