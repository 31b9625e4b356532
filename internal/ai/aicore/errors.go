package aicore

import "errors"

var (
	ErrProviderUnavailable = errors.New("text provider unavailable")
	ErrTailorTimeout       = errors.New("tailoring timeout")
	ErrInvalidResponse     = errors.New("text provider returned invalid response")
)
