// Package account classifies raw account identifiers (email address or
// mobile number) and resolves the regional API host they belong to.
package account

import (
	"fmt"
	"strings"
)

// Kind identifies which class of account identifier a value is.
type Kind string

const (
	// KindEmail is a regular email-address identifier, valid in every region.
	KindEmail Kind = "email"
	// KindMobile is a mobile-number identifier with a mandatory leading
	// country-code prefix. Only the CN region supports SMS-based OTP.
	KindMobile Kind = "mobile"
)

// SMSRegion is the only country code whose backend accepts mobile-number
// authentication.
const SMSRegion = "CN"

// Regional API hosts. Country codes are matched exactly (upper case);
// everything unknown falls back to the .com host.
const (
	defaultHost = "https://appapi.cp.dyson.com"
	hostCN      = "https://appapi.cp.dyson.cn"
	hostAU      = "https://appapi.cp.dyson.au"
	hostNZ      = "https://appapi.cp.dyson.nz"
)

// Identifier is a classified account identifier.
type Identifier struct {
	Kind  Kind
	Value string
}

// InvalidIdentifierError reports a malformed identifier or an identifier
// class that is not available in the requested region. It is raised locally,
// before any network call is made.
type InvalidIdentifierError struct {
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Reason
}

// Resolve classifies raw for the given country code. A value with no '@'
// and a leading '+' is treated as a mobile number and must consist of the
// '+' prefix followed by digits only; mobile numbers are rejected outside
// the CN region. Any other shape is treated as an email address.
func Resolve(raw, country string) (Identifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identifier{}, &InvalidIdentifierError{Reason: "empty identifier"}
	}

	if !strings.Contains(raw, "@") && strings.HasPrefix(raw, "+") {
		digits := raw[1:]
		if digits == "" || strings.IndexFunc(digits, notDigit) >= 0 {
			return Identifier{}, &InvalidIdentifierError{
				Reason: "mobile number must be '+' followed by the country code and digits",
			}
		}
		if country != SMSRegion {
			return Identifier{}, &InvalidIdentifierError{
				Reason: fmt.Sprintf("mobile authentication is only available in region %s, not %q", SMSRegion, country),
			}
		}
		return Identifier{Kind: KindMobile, Value: raw}, nil
	}

	at := strings.Index(raw, "@")
	if at <= 0 || at == len(raw)-1 {
		return Identifier{}, &InvalidIdentifierError{
			Reason: fmt.Sprintf("%q is not a valid email address", raw),
		}
	}
	return Identifier{Kind: KindEmail, Value: raw}, nil
}

// APIHost returns the regional API base URL for a country code. Matching is
// exact and case-sensitive; unknown codes use the default .com host.
func APIHost(country string) string {
	switch country {
	case "CN":
		return hostCN
	case "AU":
		return hostAU
	case "NZ":
		return hostNZ
	default:
		return defaultHost
	}
}

func notDigit(r rune) bool {
	return r < '0' || r > '9'
}
