package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		name string
		key  string
		want CombinedKey
	}{
		{"empty", "", CombinedKey{}},
		{"short", "ABC", CombinedKey{Public: "ABC"}},
		{"public only", "ABCDEFGH", CombinedKey{Public: "ABCDEFGH"}},
		{"between public and combined", "ABCDEFGHabcd", CombinedKey{Public: "ABCDEFGH"}},
		{"one short of combined", "ABCDEFGHabcdefghjkmnpqr", CombinedKey{Public: "ABCDEFGH"}},
		{"combined", "ABCDEFGHabcdefghjkmnpqrs", CombinedKey{Public: "ABCDEFGH", Admin: "abcdefghjkmnpqrs"}},
		{"extra characters ignored", "ABCDEFGHabcdefghjkmnpqrsXYZ", CombinedKey{Public: "ABCDEFGH", Admin: "abcdefghjkmnpqrs"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseKey(tc.key))
		})
	}
}

func TestHasAdmin(t *testing.T) {
	assert.False(t, ParseKey("ABCDEFGH").HasAdmin())
	assert.True(t, ParseKey("ABCDEFGHabcdefghjkmnpqrs").HasAdmin())
}
