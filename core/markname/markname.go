// Package markname builds and parses the names of citation anchors.
//
// A name identifies the anchor and is the key of the group's record in the
// document property store; it carries no data that is read back. Current
// names look like
//
//	CS_cite_<kind>_<digest>_<n>
//
// where digest is the first 16 hex digits of a BLAKE3 hash of the kind and
// the sorted keys, and n makes the name unique in the document. Older
// documents use names that pack the keys themselves:
//
//	JR_cite<n>_<kind>_<key1>,<key2>
//
// Those are parsed only so they can be migrated.
package markname

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/citesync/core/citation"
	"github.com/FocuswithJustin/citesync/core/errors"
)

// Name prefixes.
const (
	CurrentPrefix = "CS_cite"
	LegacyPrefix  = "JR_cite"

	digestLen = 16
)

// Name is a parsed anchor name.
type Name struct {
	Legacy bool
	Kind   citation.Kind
	Number int

	// Digest is set for current names.
	Digest string

	// Keys is set for legacy names.
	Keys []string
}

// New returns a fresh group id for a group of kind with keys. taken reports
// names already in use; the first free suffix is chosen.
func New(kind citation.Kind, keys []string, taken func(string) bool) (citation.GroupID, error) {
	if !kind.Valid() {
		return "", &errors.ValidationError{Field: "kind", Value: kind.String(), Message: "unknown kind"}
	}
	if len(keys) == 0 {
		return "", errors.NewValidation("keys", "a citation group needs at least one key")
	}
	digest := Digest(kind, keys)
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s_%d_%s_%d", CurrentPrefix, int(kind), digest, n)
		if !taken(name) {
			return citation.GroupID(name), nil
		}
	}
}

// Digest hashes the canonical form of a kind and a key set. Key order and
// duplicates do not change the digest.
func Digest(kind citation.Kind, keys []string) string {
	canon := slices.Clone(keys)
	slices.Sort(canon)
	canon = slices.Compact(canon)

	var b strings.Builder
	fmt.Fprintf(&b, "%d", int(kind))
	for _, k := range canon {
		b.WriteByte(0)
		b.WriteString(k)
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// IsOurs reports whether name is a citation anchor name, current or legacy.
func IsOurs(name string) bool {
	if !strings.HasPrefix(name, CurrentPrefix) && !strings.HasPrefix(name, LegacyPrefix) {
		return false
	}
	_, err := Parse(name)
	return err == nil
}

//nolint:govet // participle grammar tags are not standard struct tags
type nameGrammar struct {
	Current *currentGrammar `  @@`
	Legacy  *legacyGrammar  `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type currentGrammar struct {
	Kind   int    `"CS_cite" "_" @Int "_"`
	Digest string `@(Int | Word)+ "_"`
	Number int    `@Int`
}

//nolint:govet // participle grammar tags are not standard struct tags
type legacyGrammar struct {
	Number *int          `"JR_cite" @Int?`
	Kind   int           `"_" @Int "_"`
	Keys   []*keyGrammar `@@ ( "," @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type keyGrammar struct {
	Text string `@(Int | Word | "_" | Prefix)+`
}

var nameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Prefix", Pattern: `CS_cite|JR_cite`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[_,]`},
	{Name: "Word", Pattern: `[^_,0-9]+`},
})

var nameParser = participle.MustBuild[nameGrammar](
	participle.Lexer(nameLexer),
)

// Parse decodes a current or legacy anchor name.
func Parse(name string) (Name, error) {
	parsed, err := nameParser.ParseString("", name)
	if err != nil {
		return Name{}, &errors.ParseError{Format: "anchor name", Path: name, Message: "not a citation anchor name", Err: err}
	}

	if c := parsed.Current; c != nil {
		kind, err := citation.KindFromCode(c.Kind)
		if err != nil {
			return Name{}, &errors.ParseError{Format: "anchor name", Path: name, Message: "bad kind", Err: err}
		}
		if len(c.Digest) != digestLen || strings.Trim(c.Digest, "0123456789abcdef") != "" {
			return Name{}, errors.NewParse("anchor name", name, "digest must be 16 lowercase hex digits")
		}
		return Name{Kind: kind, Digest: c.Digest, Number: c.Number}, nil
	}

	l := parsed.Legacy
	kind, err := citation.KindFromCode(l.Kind)
	if err != nil {
		return Name{}, &errors.ParseError{Format: "anchor name", Path: name, Message: "bad kind", Err: err}
	}
	n := Name{Legacy: true, Kind: kind}
	if l.Number != nil {
		n.Number = *l.Number
	}
	for _, k := range l.Keys {
		n.Keys = append(n.Keys, k.Text)
	}
	return n, nil
}
