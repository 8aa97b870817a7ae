package feature

import "errors"

// Fatal value-format errors. Either one aborts a conversion.
var (
	// ErrValueFormat reports text that cannot become the value its
	// declaration demands, such as an unparsable ROI coordinate.
	ErrValueFormat = errors.New("invalid value format")

	// ErrIntFlag reports a declaration whose isint flag is not a boolean.
	ErrIntFlag = errors.New("invalid isint flag")
)
