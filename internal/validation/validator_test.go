package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateShare(t *testing.T) {
	valid := strings.Repeat("ab", 32) + "07"

	tests := []struct {
		name    string
		share   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"uppercase", strings.ToUpper(valid), false},
		{"surrounding whitespace", " " + valid + "\n", false},
		{"empty", "", true},
		{"odd length", valid[:65], true},
		{"not hex", strings.Repeat("zz", 33), true},
		{"too short", strings.Repeat("ab", 16), true},
		{"zero index", strings.Repeat("ab", 32) + "00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateShare(tt.share)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePubkeyHex(t *testing.T) {
	assert.NoError(t, ValidatePubkeyHex(strings.Repeat("0f", 32)))
	assert.Error(t, ValidatePubkeyHex(strings.Repeat("0f", 31)))
	assert.Error(t, ValidatePubkeyHex(""))
	assert.Error(t, ValidatePubkeyHex(strings.Repeat("g0", 32)))
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword(nil), ErrEmptyPassword)
	assert.ErrorIs(t, ValidatePassword([]byte{}), ErrEmptyPassword)
	assert.NoError(t, ValidatePassword([]byte("correct horse")))
	assert.NoError(t, ValidatePassword([]byte("pässwörd")))
	assert.Error(t, ValidatePassword([]byte{'a', 0, 'b'}))
	assert.Error(t, ValidatePassword([]byte{0xff, 0xfe}))
	assert.Error(t, ValidatePassword([]byte(strings.Repeat("x", MaxPasswordLen+1))))
}

func TestValidateMnemonic(t *testing.T) {
	phrase := strings.Repeat("abandon ", 11) + "about"
	assert.NoError(t, ValidateMnemonic(phrase))
	assert.Error(t, ValidateMnemonic(""))
	assert.Error(t, ValidateMnemonic("abandon about"))
	assert.Error(t, ValidateMnemonic(strings.Repeat("Abandon ", 11)+"about"))
}

func TestValidateServerURL(t *testing.T) {
	assert.NoError(t, ValidateServerURL("https://shares.example.com"))
	assert.NoError(t, ValidateServerURL("http://127.0.0.1:8080/api"))
	assert.Error(t, ValidateServerURL("ftp://example.com"))
	assert.Error(t, ValidateServerURL("https://"))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "a\nb", SanitizeInput("  a \r\n b  "))
}

func TestValidatePassphrase(t *testing.T) {
	assert.NoError(t, ValidatePassphrase(""))
	assert.Error(t, ValidatePassphrase("a\x00b"))
}
