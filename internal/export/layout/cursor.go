package layout

// Cursor tracks the vertical write position on the current page.
type Cursor struct {
	Page Size
	Y    float64
}

// NewCursor starts at the top margin of page.
func NewCursor(page Size) *Cursor {
	return &Cursor{Page: page, Y: Margin}
}

// Bottom is the lowest y that content may reach.
func (c *Cursor) Bottom() float64 {
	return c.Page.H - Margin
}

// Fits reports whether a block of height h fits below the cursor.
func (c *Cursor) Fits(h float64) bool {
	return c.Y+h <= c.Bottom()
}

// Below reports whether the cursor is lower than reserve points above the bottom.
func (c *Cursor) Below(reserve float64) bool {
	return c.Y > c.Bottom()-reserve
}

// Advance moves the cursor down by h.
func (c *Cursor) Advance(h float64) {
	c.Y += h
}

// Lines advances past n wrapped lines plus gap.
func (c *Cursor) Lines(n int, gap float64) {
	c.Y += float64(n)*LineHeight + gap
}

// Reset moves the cursor back to the top margin, as after a page break.
func (c *Cursor) Reset() {
	c.Y = Margin
}
