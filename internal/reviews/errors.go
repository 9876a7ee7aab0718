package reviews

import "errors"

var (
	ErrNotFound          = errors.New("review not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrConversion        = errors.New("failed to convert PDF to image")
	ErrAnalysis          = errors.New("failed to examine resume")
	ErrNotReady          = errors.New("review is not ready")
)
