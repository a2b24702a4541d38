package market

import "errors"

var ErrInvalidAttribute = errors.New("invalid attribute")
