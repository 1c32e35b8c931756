package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// HashScheme is the tag that prefixes every encoded password hash.
	HashScheme = "pbkdf2_sha256"
	// DefaultIterations is the PBKDF2 iteration count for new hashes and the minimum accepted by NewHasher.
	DefaultIterations = 390000

	saltLen   = 16
	digestLen = 32
	// maxIterations bounds the work a stored hash can ask Verify to do.
	maxIterations = 10_000_000
)

// Hasher hashes and verifies passwords using PBKDF2-HMAC-SHA256. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Iterations int
}

// NewHasher returns a Hasher with the given iteration count. Values below DefaultIterations
// are raised to DefaultIterations.
func NewHasher(iterations int) *Hasher {
	if iterations < DefaultIterations {
		iterations = DefaultIterations
	}
	if iterations > maxIterations {
		iterations = maxIterations
	}
	return &Hasher{Iterations: iterations}
}

// Hash derives a digest of password with a fresh random salt and returns it encoded as
// pbkdf2_sha256$<iterations>$<saltHex>$<digestHex>.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	digest := pbkdf2.Key([]byte(password), salt, h.Iterations, digestLen, sha256.New)
	return strings.Join([]string{
		HashScheme,
		strconv.Itoa(h.Iterations),
		hex.EncodeToString(salt),
		hex.EncodeToString(digest),
	}, "$"), nil
}

// Verify reports whether password matches the encoded hash. It never fails: any malformed
// encoding is treated as a mismatch. Digests are compared in constant time.
func (h *Hasher) Verify(password, encoded string) bool {
	p, ok := parseHash(encoded)
	if !ok {
		return false
	}
	got := pbkdf2.Key([]byte(password), p.salt, p.iterations, len(p.digest), sha256.New)
	return subtle.ConstantTimeCompare(got, p.digest) == 1
}

// NeedsRehash reports whether encoded was produced with fewer iterations than h uses.
// Malformed encodings need a rehash.
func (h *Hasher) NeedsRehash(encoded string) bool {
	p, ok := parseHash(encoded)
	if !ok {
		return true
	}
	return p.iterations < h.Iterations
}

type parsedHash struct {
	iterations int
	salt       []byte
	digest     []byte
}

func parseHash(encoded string) (parsedHash, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != HashScheme {
		return parsedHash{}, false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 || iterations > maxIterations {
		return parsedHash{}, false
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return parsedHash{}, false
	}
	digest, err := hex.DecodeString(parts[3])
	if err != nil || len(digest) != digestLen {
		return parsedHash{}, false
	}
	return parsedHash{iterations: iterations, salt: salt, digest: digest}, true
}
