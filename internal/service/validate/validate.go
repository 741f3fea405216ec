package validate

import (
	_ "embed"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nkiryanov/todoserver/internal/apperrors"
)

const (
	minPasswordLength = 8
	MaxPasswordLength = 128

	// Similarity ratio starting from which password is considered derived from user attribute
	maxSimilarity = 0.7
)

//go:embed common_passwords.txt
var commonPasswordsList string

var commonPasswords = func() map[string]struct{} {
	res := make(map[string]struct{})
	for line := range strings.Lines(commonPasswordsList) {
		if p := strings.TrimSpace(line); p != "" {
			res[p] = struct{}{}
		}
	}
	return res
}()

// Check the password against the policy
// Every broken rule is reported in apperrors.PasswordPolicyError
func Password(password string, email string) error {
	// Other rules are not run on long input, similarity check is quadratic
	if utf8.RuneCountInString(password) > MaxPasswordLength {
		return &apperrors.PasswordPolicyError{
			Reasons: []string{"This password is too long. It must contain at most 128 characters."},
		}
	}

	var reasons []string

	if utf8.RuneCountInString(password) < minPasswordLength {
		reasons = append(reasons, "This password is too short. It must contain at least 8 characters.")
	}

	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		reasons = append(reasons, "This password is too common.")
	}

	if isNumeric(password) {
		reasons = append(reasons, "This password is entirely numeric.")
	}

	if similarToEmail(password, email) {
		reasons = append(reasons, "The password is too similar to the email.")
	}

	if len(reasons) > 0 {
		return &apperrors.PasswordPolicyError{Reasons: reasons}
	}

	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Compare password with the whole email, its local part and every word of local part
func similarToEmail(password string, email string) bool {
	if email == "" || password == "" {
		return false
	}

	password = strings.ToLower(password)
	email = strings.ToLower(email)
	local, _, _ := strings.Cut(email, "@")

	candidates := []string{email, local}
	candidates = append(candidates, strings.FieldsFunc(local, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})...)

	for _, c := range candidates {
		if utf8.RuneCountInString(c) < 3 {
			continue
		}
		if similarity(password, c) >= maxSimilarity {
			return true
		}
	}
	return false
}

// Ratio 2*M/T where M is the longest common subsequence length and T is total length of both strings
func similarity(a string, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	return 2 * float64(prev[len(rb)]) / float64(len(ra)+len(rb))
}
