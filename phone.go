package auth

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse numbers written without a country code
const DefaultPhoneRegion = "VN"

// NormalizePhoneNumber parses raw and returns it in E.164 form so the same
// number always maps to the same registry key
func NormalizePhoneNumber(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", withCause(ErrInvalidPhoneNumber, nil, nil)
	}

	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", withCause(ErrInvalidPhoneNumber, err, map[string]any{"phone_number": raw})
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", withCause(ErrInvalidPhoneNumber, nil, map[string]any{"phone_number": raw})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
