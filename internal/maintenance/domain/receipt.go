package domain

import (
	"errors"
	"strconv"
)

var errInvalidReceiptSequence = errors.New("receipt sequence must be positive")

// FormatReceiptNumber renders a receipt number as prefix followed by the sequence.
func FormatReceiptNumber(prefix string, seq int64) (string, error) {
	if seq <= 0 {
		return "", errInvalidReceiptSequence
	}
	return prefix + strconv.FormatInt(seq, 10), nil
}
