package bcrypt

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 10

	MinPasscodeLength = 4
	MaxPasscodeLength = 64
	// bcrypt ignores input past 72 bytes.
	maxPasscodeBytes = 72
)

var (
	ErrPasscodeLength   = fmt.Errorf("passcode must be %d to %d characters", MinPasscodeLength, MaxPasscodeLength)
	ErrPasscodeMismatch = errors.New("passcode does not match")
)

// normalize trims what guests tend to paste around a passcode. Hashing and
// comparing both go through it.
func normalize(passcode string) string {
	return strings.TrimSpace(passcode)
}

// HashPasscode hashes an event join passcode.
func HashPasscode(passcode string) (string, error) {
	passcode = normalize(passcode)
	n := utf8.RuneCountInString(passcode)
	if n < MinPasscodeLength || n > MaxPasscodeLength || len(passcode) > maxPasscodeBytes {
		return "", ErrPasscodeLength
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(passcode), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash passcode: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePasscode checks a plain passcode against its hash. A wrong passcode
// is ErrPasscodeMismatch; any other error means the hash itself is unusable.
func ComparePasscode(hashedPasscode, passcode string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPasscode), []byte(normalize(passcode)))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasscodeMismatch
	}
	if err != nil {
		return fmt.Errorf("passcode comparison failed: %w", err)
	}
	return nil
}
