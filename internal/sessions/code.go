package sessions

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/studyhive/backend/internal/apperr"
)

// Lookalike characters (0/O, 1/I) are excluded so codes survive being read
// aloud or copied by hand.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// codeStore is the slice of the store the allocator needs.
type codeStore interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeAllocator generates collision-free, human-shareable session codes of
// the form PREFIX-XXXXXX.
type CodeAllocator struct {
	store      codeStore
	prefix     string
	length     int
	maxRetries int
}

// NewCodeAllocator creates an allocator with the given prefix.
func NewCodeAllocator(store codeStore, prefix string, length, maxRetries int) *CodeAllocator {
	return &CodeAllocator{store: store, prefix: prefix, length: length, maxRetries: maxRetries}
}

// Allocate generates candidates until one is absent from the store. Repeated
// collisions are vanishingly unlikely at realistic scale, but the retry
// budget keeps a pathological store state from looping forever.
func (a *CodeAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		code, err := a.generate()
		if err != nil {
			return "", err
		}
		exists, err := a.store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperr.ResourceExhausted("could not allocate a unique session code")
}

func (a *CodeAllocator) generate() (string, error) {
	var b strings.Builder
	b.WriteString(a.prefix)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < a.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode uppercases and trims a client-supplied code so lookups match
// regardless of how the code was typed.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
