package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// charset defines the character set used for generating short codes.
// Uses alphanumeric characters (both cases) for a total of 62 possible characters.
// This gives us 62^6 = ~56 billion possible combinations for 6-character codes.
const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratedCodeLength is the length of every generated code. Custom codes may
// be up to 8 characters long.
const GeneratedCodeLength = 6

var (
	shortCodeRe = regexp.MustCompile(`^[A-Za-z0-9]{6,8}$`)
	charsetMax  = big.NewInt(int64(len(charset)))
)

// GenerateShortCode returns a GeneratedCodeLength-character code drawn
// uniformly from charset with crypto/rand. It says nothing about uniqueness.
func GenerateShortCode() (string, error) {
	code := make([]byte, GeneratedCodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, charsetMax)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// ValidShortCode reports whether code has the accepted format
// (6 to 8 ASCII letters or digits).
func ValidShortCode(code string) bool {
	return shortCodeRe.MatchString(code)
}
