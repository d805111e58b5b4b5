// Package auth implements the dual key authorization scheme. A caller proves
// write access to a grimoire by presenting its 8 character public key
// concatenated with the paired 16 character admin key as a single string.
package auth

import (
	"grimoire/grimoire/keygen"
	"grimoire/grimoire/schema"
	"log/slog"

	"gorm.io/gorm"
)

const combinedKeyLen = keygen.PublicKeyLen + keygen.AdminKeyLen

// CombinedKey is the parsed form of a caller supplied key string. Admin is
// empty when the caller presented only the public half.
type CombinedKey struct {
	Public string
	Admin  string
}

// ParseKey splits a key string into its public and admin halves. Shorter
// strings yield a public-only key; characters past 24 are ignored, matching
// how stored keys have always been accepted.
func ParseKey(key string) CombinedKey {
	if len(key) < combinedKeyLen {
		if len(key) > keygen.PublicKeyLen {
			key = key[:keygen.PublicKeyLen]
		}
		return CombinedKey{Public: key}
	}
	return CombinedKey{
		Public: key[:keygen.PublicKeyLen],
		Admin:  key[keygen.PublicKeyLen:combinedKeyLen],
	}
}

func (k CombinedKey) HasAdmin() bool {
	return k.Admin != ""
}

// IsAuthorized reports whether key grants write access. Both halves must
// match a single stored grimoire exactly, byte for byte. The check reads
// only; it is safe to repeat.
func (k CombinedKey) IsAuthorized(db *gorm.DB) (bool, error) {
	if !k.HasAdmin() {
		return false, nil
	}

	var count int64
	result := db.Model(&schema.Grimoire{}).
		Where("public_key = ? AND admin_key = ?", k.Public, k.Admin).
		Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking key authorization", "public_key", k.Public, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}

	return count > 0, nil
}

// IsAuthorized parses key and checks it against the store in one step.
func IsAuthorized(key string, db *gorm.DB) (bool, error) {
	return ParseKey(key).IsAuthorized(db)
}
