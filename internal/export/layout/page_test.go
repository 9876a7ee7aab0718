package layout

import (
	"errors"
	"testing"
)

func TestPageSizeOrientation(t *testing.T) {
	a4 := PageSize(A4, Portrait)
	if a4.W != 595.28 || a4.H != 841.89 {
		t.Fatalf("unexpected a4 size %+v", a4)
	}
	land := PageSize(Letter, Landscape)
	if land.W != 792 || land.H != 612 {
		t.Fatalf("unexpected letter landscape size %+v", land)
	}
}

func TestPlanSlicesSinglePage(t *testing.T) {
	page := PageSize(A4, Portrait)
	slices, err := PlanSlices(1000, 1400, page)
	if err != nil {
		t.Fatalf("PlanSlices: %v", err)
	}
	if len(slices) != 1 || slices[0] != (Slice{Y: 0, Height: 1400}) {
		t.Fatalf("expected one full slice, got %+v", slices)
	}
}

func TestPlanSlicesCoverImageExactly(t *testing.T) {
	page := PageSize(A4, Portrait)
	tests := []struct {
		name string
		w, h int
	}{
		{"two pages", 1190, 3000},
		{"exact multiple", 1000, 2828},
		{"narrow tall", 37, 9001},
		{"wide short remainder", 2480, 7017},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			slices, err := PlanSlices(tt.w, tt.h, page)
			if err != nil {
				t.Fatalf("PlanSlices: %v", err)
			}
			if len(slices) < 2 {
				t.Fatalf("expected multiple slices, got %d", len(slices))
			}
			next := 0
			total := 0
			for i, s := range slices {
				if s.Y != next {
					t.Fatalf("slice %d starts at %d, want %d", i, s.Y, next)
				}
				if s.Height <= 0 {
					t.Fatalf("slice %d has height %d", i, s.Height)
				}
				if s.PageHeight(tt.w, page) > page.H+1e-9 {
					t.Fatalf("slice %d taller than a page", i)
				}
				next = s.Y + s.Height
				total += s.Height
			}
			if total != tt.h {
				t.Fatalf("slices sum to %d, want %d", total, tt.h)
			}
		})
	}
}

func TestPlanSlicesRejectsEmptyImage(t *testing.T) {
	if _, err := PlanSlices(0, 10, PageSize(A4, Portrait)); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestCursorFitsAndReset(t *testing.T) {
	c := NewCursor(Size{W: 200, H: 200})
	if !c.Fits(104) {
		t.Fatalf("expected 104pt to fit from the top margin")
	}
	if c.Fits(105) {
		t.Fatalf("expected 105pt not to fit")
	}
	c.Lines(3, 6)
	if c.Y != Margin+48 {
		t.Fatalf("unexpected y %v", c.Y)
	}
	if !c.Below(200 - Margin - Margin - 47) {
		t.Fatalf("expected cursor below reserve")
	}
	c.Reset()
	if c.Y != Margin {
		t.Fatalf("expected reset to margin, got %v", c.Y)
	}
}
