// Package identifier validates Mexican personal (CURP) and business (RFC)
// identifiers. Every rejection carries the stage that failed so callers can
// show the user the right message.
package identifier

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind selects which identifier rules apply.
type Kind int

const (
	// National is the 18-character CURP.
	National Kind = iota
	// Tax is the 12-13 character RFC used by businesses.
	Tax
)

func (k Kind) String() string {
	if k == Tax {
		return "rfc"
	}
	return "curp"
}

// Reason names the validation stage that rejected a value.
type Reason string

const (
	ReasonMalformed         Reason = "malformed"
	ReasonBlacklistedPrefix Reason = "blacklisted-prefix"
	ReasonChecksumMismatch  Reason = "checksum-mismatch"
	ReasonWrongLength       Reason = "wrong-length"
)

// Error is returned for every rejected identifier.
type Error struct {
	Kind   Kind
	Reason Reason
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Reason)
}

const (
	nationalLength = 18
	taxMinLength   = 12
	taxMaxLength   = 13
)

var (
	nationalPattern = regexp.MustCompile(`^[A-Z][AEIOU][A-Z]{2}\d{2}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])[HM](AS|BC|BS|CC|CS|CH|CL|CM|DF|DG|GT|GR|HG|JC|MC|MN|MS|NT|NL|OC|PL|QT|QR|SP|SL|SR|TC|TS|TL|VZ|YN|ZS)([B-DF-HJ-NP-TV-Z]{3})([A-Z\d])(\d)$`)
	taxPattern      = regexp.MustCompile(`^([A-ZÑ&]{3,4})\d{2}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])[A-Z\d]{3}$`)
)

// Four-letter openings that RENAPO never assigns.
var blacklist = map[string]struct{}{
	"BUEI": {}, "BUEY": {}, "CACA": {}, "CACO": {}, "CAGA": {}, "CAGO": {},
	"CAKA": {}, "COGE": {}, "COGI": {}, "COJA": {}, "COJE": {}, "COJI": {},
	"COJO": {}, "CULO": {}, "FETO": {}, "GUEI": {}, "GUEY": {}, "JOTO": {},
	"KACA": {}, "KACO": {}, "KAGA": {}, "KAGO": {}, "KOGE": {}, "KOGI": {},
	"KOJA": {}, "KOJE": {}, "KOJI": {}, "KOJO": {}, "KULO": {}, "MAME": {},
	"MAMO": {}, "MEAR": {}, "MEAS": {}, "MEON": {}, "MIAR": {}, "MION": {},
	"MOCO": {}, "MULA": {}, "PEDA": {}, "PEDO": {}, "PENE": {}, "PIPI": {},
	"PITO": {}, "POPO": {}, "PUTA": {}, "PUTO": {}, "QULO": {}, "RUIN": {},
}

// checkAlphabet maps a rune to its checksum value. Ñ sits between N and O,
// so values must come from rune positions, not byte offsets.
var checkAlphabet = func() map[rune]int {
	m := make(map[rune]int)
	for i, r := range []rune("0123456789ABCDEFGHIJKLMNÑOPQRSTUVWXYZ") {
		m[r] = i
	}
	return m
}()

// Normalize trims surrounding whitespace and uppercases.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate runs the rules for kind and returns the normalized identifier.
func Validate(raw string, kind Kind) (string, error) {
	if kind == Tax {
		return ValidateTax(raw)
	}
	return ValidateNational(raw)
}

// ValidateNational checks length, structure, blacklist and verifier digit, in
// that order, returning the first failing stage.
func ValidateNational(raw string) (string, error) {
	v := Normalize(raw)
	if utf8.RuneCountInString(v) != nationalLength {
		return "", &Error{Kind: National, Reason: ReasonWrongLength}
	}
	if !nationalPattern.MatchString(v) {
		return "", &Error{Kind: National, Reason: ReasonMalformed}
	}
	if IsBlacklisted(v) {
		return "", &Error{Kind: National, Reason: ReasonBlacklistedPrefix}
	}
	want, err := CheckDigit(v[:nationalLength-1])
	if err != nil {
		return "", err
	}
	if v[nationalLength-1] != want {
		return "", &Error{Kind: National, Reason: ReasonChecksumMismatch}
	}
	return v, nil
}

// ValidateTax checks an RFC for length and structure only.
func ValidateTax(raw string) (string, error) {
	v := Normalize(raw)
	n := utf8.RuneCountInString(v)
	if n < taxMinLength || n > taxMaxLength {
		return "", &Error{Kind: Tax, Reason: ReasonWrongLength}
	}
	if !taxPattern.MatchString(v) {
		return "", &Error{Kind: Tax, Reason: ReasonMalformed}
	}
	return v, nil
}

// IsBlacklisted reports whether the first four characters are a banned prefix.
func IsBlacklisted(v string) bool {
	if len(v) < 4 {
		return false
	}
	_, ok := blacklist[strings.ToUpper(v[:4])]
	return ok
}

// CheckDigit computes the CURP verifier digit for the first 17 characters.
func CheckDigit(first17 string) (byte, error) {
	runes := []rune(first17)
	if len(runes) != nationalLength-1 {
		return 0, &Error{Kind: National, Reason: ReasonWrongLength}
	}
	sum := 0
	for i, r := range runes {
		val, ok := checkAlphabet[r]
		if !ok {
			return 0, &Error{Kind: National, Reason: ReasonMalformed}
		}
		sum += val * (nationalLength - i)
	}
	rem := sum % 10
	if rem == 0 {
		return '0', nil
	}
	return byte('0' + 10 - rem), nil
}
