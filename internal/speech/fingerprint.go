package speech

import (
	"strconv"
	"unicode/utf8"

	"github.com/opencontainers/go-digest"
)

// Fingerprint returns the lowercase hex SHA-256 digest of text.
func Fingerprint(text string) string {
	return digest.Canonical.FromString(text).Encoded()
}

// Key identifies one utterance in every cache tier.
type Key struct {
	Language string
	Hash     string
	TextLen  int
}

// NewKey derives the cache key for text spoken in language. The language is
// used as given; callers canonicalize it first.
func NewKey(text, language string) Key {
	return Key{
		Language: language,
		Hash:     Fingerprint(text),
		TextLen:  utf8.RuneCountInString(text),
	}
}

// Stem is the file name stem shared by the local and remote tiers. The length
// prefix is only there to make directory listings readable.
func (k Key) Stem() string {
	return k.Language + "-" + strconv.Itoa(k.TextLen) + k.Hash
}

// ObjectName is the name of the key's object in the remote object store.
func (k Key) ObjectName(ext string) string {
	return k.Language + "/" + k.Stem() + ext
}

func (k Key) String() string { return k.Stem() }
