package store

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// cities is the word list auto-naming draws from when a workspace is
// created without an explicit name or branch. Names are plain city slugs
// so they read naturally as directory and branch names.
var cities = []string{
	"almaty", "amsterdam", "anchorage", "athens", "auckland", "bandung",
	"bangkok", "barcelona", "belfast", "berlin", "bogota", "boston",
	"brasilia", "brisbane", "brussels", "bucharest", "budapest", "buenos-aires",
	"cairo", "calgary", "capetown", "caracas", "chicago", "copenhagen",
	"dakar", "delhi", "denver", "dubai", "dublin", "edmonton",
	"florence", "frankfurt", "geneva", "hanoi", "helsinki", "hong-kong",
	"honolulu", "houston", "istanbul", "jakarta", "johannesburg", "kathmandu",
	"kyoto", "lahore", "lima", "lisbon", "london", "los-angeles",
	"madrid", "managua", "manila", "melbourne", "mexico-city", "miami",
	"milan", "minneapolis", "montreal", "mumbai", "munich", "nairobi",
	"osaka", "oslo", "ottawa", "paris", "perth", "porto",
	"prague", "reykjavik", "riga", "rio", "rome", "seattle",
	"seoul", "shanghai", "singapore", "stockholm", "sydney", "taipei",
	"tehran", "tokyo", "toronto", "valencia", "vancouver", "venice",
	"vienna", "victoria", "warsaw", "wellington", "zurich",
}

// SafeDirName collapses name into a lowercase, filesystem- and branch-safe
// token: only ASCII alphanumerics, '-', '_', and '.' survive; whitespace
// becomes '-'; everything else is dropped. An empty result falls back to
// "repo".
func SafeDirName(name string) string {
	return safeDirName(name)
}

func safeDirName(name string) string {
	var b strings.Builder
	for _, ch := range strings.TrimSpace(name) {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-', ch == '_', ch == '.':
			b.WriteRune(ch)
		case ch >= 'A' && ch <= 'Z':
			b.WriteRune(ch - 'A' + 'a')
		case isSpace(ch):
			b.WriteRune('-')
		}
	}
	trimmed := strings.Trim(b.String(), "-")
	if trimmed == "" {
		return "repo"
	}
	return trimmed
}

func isSpace(ch rune) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// randCity returns a random entry from cities using a CSPRNG; the caller
// retries on collision, so any bias introduced by favoring simplicity over
// a rejection-sampled uniform pick is immaterial.
func randCity() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(cities))))
	if err != nil {
		return cities[0]
	}
	return cities[n.Int64()]
}

// randSuffix8 returns 8 lowercase hex characters, used as the fallback
// "ws-<suffix>" workspace name when all city names are exhausted or collide
// repeatedly.
func randSuffix8() string {
	const alphabet = "0123456789abcdef"
	buf := make([]byte, 8)
	maxN := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, maxN)
		if err != nil {
			buf[i] = alphabet[0]
			continue
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf)
}
