package service

import (
	"strings"

	"github.com/sdiallo/kalpe/internal/domain"
)

// NormalizePhone reduces a wallet number to the 9-digit local format the
// aggregator expects. The transform is purely textual and deterministic so
// the stored value can always be traced back to the submitted one.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, raw)

	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = strings.TrimPrefix(cleaned, "00221")
	if len(cleaned) > 9 {
		cleaned = strings.TrimPrefix(cleaned, "221")
	}

	if len(cleaned) != 9 {
		return "", domain.ErrInvalidPhoneNumber
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", domain.ErrInvalidPhoneNumber
		}
	}
	return cleaned, nil
}
