package bcrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasscodeHashing(t *testing.T) {
	hash, err := HashPasscode("cake-2026")
	require.NoError(t, err)

	assert.NotEqual(t, "cake-2026", hash)
	assert.NoError(t, ComparePasscode(hash, "cake-2026"))
	assert.NoError(t, ComparePasscode(hash, "  cake-2026\n"), "surrounding whitespace is ignored")
	assert.ErrorIs(t, ComparePasscode(hash, "wrong"), ErrPasscodeMismatch)
}

func TestHashPasscode_Length(t *testing.T) {
	tests := []struct {
		name     string
		passcode string
		wantErr  bool
	}{
		{"too short", "abc", true},
		{"short after trimming", "  abc  ", true},
		{"minimum", "abcd", false},
		{"maximum", strings.Repeat("a", MaxPasscodeLength), false},
		{"too long", strings.Repeat("a", MaxPasscodeLength+1), true},
		{"multibyte over bcrypt limit", strings.Repeat("ü", 40), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HashPasscode(tt.passcode)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPasscodeLength)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComparePasscode_BadHash(t *testing.T) {
	err := ComparePasscode("not-a-hash", "cake-2026")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasscodeMismatch)
}
