package employee

import (
	"regexp"
	"strings"
)

var (
	cedulaPattern  = regexp.MustCompile(`^([VE])-?(\d{6,9})$`)
	phonePattern   = regexp.MustCompile(`^(?:\+?58|0)?(4(?:12|14|16|24|26)\d{7})$`)
	accountPattern = regexp.MustCompile(`^\d{20}$`)
)

// NormalizeCedula returns the canonical "V-12345678" form.
func NormalizeCedula(raw string) (string, error) {
	value := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), ".", ""))
	m := cedulaPattern.FindStringSubmatch(value)
	if m == nil {
		return "", ErrInvalidCedula
	}
	return m[1] + "-" + m[2], nil
}

// NormalizePhone returns a mobile number as 04XXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	value := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	m := phonePattern.FindStringSubmatch(value)
	if m == nil {
		return "", ErrInvalidPhone
	}
	return "0" + m[1], nil
}

// NormalizeAccount strips separators from a 20-digit account number whose
// first four digits must be the bank code.
func NormalizeAccount(bankCode, account string) (string, error) {
	account = strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(account))
	if !accountPattern.MatchString(account) || !strings.HasPrefix(account, bankCode) {
		return "", ErrInvalidAccount
	}
	return account, nil
}
