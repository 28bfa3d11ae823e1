// Package guestid derives guest identifiers.
//
// An identifier is the first two characters of the guest's name in upper
// case (or "GN" when the name is empty), the last four digits of the phone
// number and six random upper-case hex characters, e.g. "AN3210A1B2C3".
package guestid

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// FallbackPrefix is used when the guest has no name.
	FallbackPrefix = "GN"

	prefixLen = 2
	phoneLen  = 4
	randLen   = 6
)

// Generator produces guest identifiers.
type Generator struct {
	random func() string
}

// New returns a Generator whose random suffix comes from a v4 UUID.
func New() *Generator {
	return &Generator{random: uuidHex}
}

// NewWithRandom returns a Generator using random for the suffix source.
// random must return at least six hex characters.
func NewWithRandom(random func() string) *Generator {
	return &Generator{random: random}
}

// Generate builds an identifier for name and phone.
func (g *Generator) Generate(name, phone string) string {
	var b strings.Builder
	b.WriteString(Prefix(name))
	b.WriteString(phoneSuffix(phone))
	b.WriteString(strings.ToUpper(g.random()[:randLen]))
	return b.String()
}

// Prefix returns the name part of an identifier.
func Prefix(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return FallbackPrefix
	}
	r := []rune(name)
	if len(r) > prefixLen {
		r = r[:prefixLen]
	}
	return cases.Upper(language.Und).String(string(r))
}

func phoneSuffix(phone string) string {
	if len(phone) <= phoneLen {
		return phone
	}
	return phone[len(phone)-phoneLen:]
}

func uuidHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
