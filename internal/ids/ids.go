// Package ids generates the identifier families used across the
// store: content hashes, short random IDs, and the deterministic IDs
// derived for tasks and facts.
package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ridLength is the number of base36 characters in a random ID suffix.
const ridLength = 6

// taskSlugLen caps the slug portion of a task ID.
const taskSlugLen = 12

// factHashLen is the hash prefix length of a fact ID.
const factHashLen = 16

// Sum returns the lowercase hex SHA-256 of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString returns the lowercase hex SHA-256 of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// encodeBase36 converts bytes to an exactly length-character base36
// string: zero-padded on the left, truncated to the least significant
// digits when the value is too wide.
func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Sign() > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	// Digits come out least significant first.
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}

	str := string(chars)
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// RID returns "<prefix>-" followed by six base36 characters drawn
// from a random source. Uniqueness only needs to hold within a short
// window; colliding inserts surface as primary-key errors upstream.
func RID(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is gone;
		// nothing sensible to fall back to.
		panic("ids: rand.Read: " + err.Error())
	}
	return prefix + "-" + encodeBase36(buf, ridLength)
}

// TaskID derives the deterministic task ID for a title:
// "T-" + slug with runs of non-alphanumerics collapsed to "-",
// truncated to 12 characters.
func TaskID(title string) string {
	return "T-" + slug(title, taskSlugLen)
}

// FactID derives the deterministic fact ID for a key and scope:
// "F-" + SHA256("<key>::<scope>")[:16]. Scope defaults to repo.
func FactID(key, scope string) string {
	if scope == "" {
		scope = "repo"
	}
	return "F-" + SumString(key+"::"+scope)[:factHashLen]
}

// ArtifactID derives the default artifact ID from a body (or URI)
// hash: "P-" + hash[:8].
func ArtifactID(sha string) string {
	if len(sha) > 8 {
		sha = sha[:8]
	}
	return "P-" + sha
}

func slug(s string, maxLen int) string {
	s = strings.ToLower(s)
	var sb strings.Builder
	lastDash := false
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			sb.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			sb.WriteByte('-')
			lastDash = true
		}
	}
	out := sb.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
