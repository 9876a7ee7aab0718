package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusReportsEachCheck(t *testing.T) {
	svc := NewService()
	svc.Register("db", nil)
	svc.Register("rasterizer", func(context.Context) error { return nil })

	ok, checks := svc.Status(context.Background())
	if !ok {
		t.Fatalf("expected healthy, got %v", checks)
	}
	if checks["db"] != "disabled" || checks["rasterizer"] != "ok" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}

func TestStatusFailsOnError(t *testing.T) {
	svc := NewService()
	svc.Register("rasterizer", func(context.Context) error { return errors.New("pdftoppm not found") })
	svc.Register("db", func(context.Context) error { return nil })

	ok, checks := svc.Status(context.Background())
	if ok {
		t.Fatalf("expected unhealthy")
	}
	if checks["rasterizer"] != "pdftoppm not found" {
		t.Fatalf("unexpected rasterizer result: %q", checks["rasterizer"])
	}
}
