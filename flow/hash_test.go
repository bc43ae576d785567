package flow

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/poiesic/flowrun/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stableA(ctx context.Context, rec *core.Record, hash string) error {
	if rec.Has("text") {
		return nil
	}
	return errors.New("no text")
}

// stableB has the same logic as stableA with different layout and comments.
func stableB(
	ctx context.Context,
	rec *core.Record,
	hash string,
) error {
	// Nothing here changes behaviour.
	if rec.Has("text") {

		return nil // done
	}

	return errors.New("no text")
}

func stableNegated(ctx context.Context, rec *core.Record, hash string) error {
	if !rec.Has("text") {
		return nil
	}
	return errors.New("no text")
}

func stableOtherConstant(ctx context.Context, rec *core.Record, hash string) error {
	if rec.Has("body") {
		return nil
	}
	return errors.New("no text")
}

var closureA = func(x int) int { return x * 2 }

var closureB = func(x int) int {
	// doubled
	return x * 2
}

var closureC = func(x int) int { return x * 3 }

type hashReceiver struct{}

func (hashReceiver) handle(ctx context.Context, rec *core.Record, hash string) error {
	return nil
}

var hexHash = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestStableHash_FormattingAndComments(t *testing.T) {
	a := StableHash(stableA)
	assert.Regexp(t, hexHash, a)
	assert.Equal(t, a, StableHash(stableA), "hash must be deterministic")
	assert.Equal(t, a, StableHash(stableB))
}

func TestStableHash_LogicChanges(t *testing.T) {
	a := StableHash(stableA)
	assert.NotEqual(t, a, StableHash(stableNegated), "branch change must change the hash")
	assert.NotEqual(t, a, StableHash(stableOtherConstant), "constant change must change the hash")
}

func TestStableHash_Closures(t *testing.T) {
	assert.Equal(t, StableHash(closureA), StableHash(closureB))
	assert.NotEqual(t, StableHash(closureA), StableHash(closureC))
}

func TestStableHash_NeverPanics(t *testing.T) {
	var nilFunc func()
	assert.Regexp(t, hexHash, StableHash(nil))
	assert.Regexp(t, hexHash, StableHash(42))
	assert.Regexp(t, hexHash, StableHash(nilFunc))

	// Bound method values resolve to compiler wrappers and use a fallback.
	bound := hashReceiver{}.handle
	assert.Regexp(t, hexHash, StableHash(bound))
	assert.Equal(t, StableHash(bound), StableHash(bound))
}

func TestHashFuncSource_Relocation(t *testing.T) {
	original := []byte(`package p

func handler(x int) int {
	if x > 0 {
		return x
	}
	return -x
}
`)
	moved := []byte(`package p

// Some new code above pushes the handler down.
var unrelated = 1

func other() {}

// handler returns |x|.
func handler(x int) int {
	if x > 0 { // positive
		return x
	}


	return -x
}
`)
	changed := []byte(`package p

func handler(x int) int {
	if x >= 0 {
		return x
	}
	return -x
}
`)

	h1, ok := hashFuncSource("a.go", original, 3)
	require.True(t, ok)
	h2, ok := hashFuncSource("b.go", moved, 9)
	require.True(t, ok)
	h3, ok := hashFuncSource("a.go", changed, 3)
	require.True(t, ok)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	_, ok = hashFuncSource("bad.go", []byte("not go"), 1)
	assert.False(t, ok)
}

func TestHashSourceText(t *testing.T) {
	src := []byte("x\n\tfunc() {\n\t\treturn\n\t}\ny\n")
	h1, ok := hashSourceText(src, 2)
	require.True(t, ok)

	reindented := []byte("x\n        func() {\n            return\n        }\ny\n")
	h2, ok := hashSourceText(reindented, 2)
	require.True(t, ok)
	assert.NotEmpty(t, h1)
	assert.NotEmpty(t, h2)

	_, ok = hashSourceText(src, 100)
	assert.False(t, ok)
}

func TestDedent(t *testing.T) {
	assert.Equal(t, "a\n\tb\n\nc", dedent([]string{"\ta", "\t\tb", "", "\tc"}))
	assert.Equal(t, "a\nb", dedent([]string{"a", "b"}))
}

func TestShortFuncName(t *testing.T) {
	assert.Equal(t, "stableA", ShortFuncName(stableA))
	assert.Equal(t, "", ShortFuncName(42))
	assert.Contains(t, FuncName(stableA), "flow.stableA")
}

func missingSource(string) ([]byte, error) {
	return nil, os.ErrNotExist
}

func TestStableHash_WithoutSource(t *testing.T) {
	a := stableHash(stableA, missingSource)
	assert.Regexp(t, hexHash, a)
	assert.Equal(t, a, stableHash(stableA, missingSource))
	assert.NotEqual(t, digestString("name:"+FuncName(stableA)), a,
		"hash without source must depend on more than the function name")

	if _, ok := hashCompiled(FuncName(stableA)); !ok {
		t.Skip("executable has no readable symbol table")
	}
	assert.NotEqual(t, a, stableHash(stableNegated, missingSource), "machine code change must change the hash")
	assert.NotEqual(t, a, stableHash(stableOtherConstant, missingSource))
}

func TestHashBuilt_UnknownSymbol(t *testing.T) {
	name := "github.com/poiesic/flowrun/flow.noSuchFunction"
	_, ok := hashCompiled(name)
	assert.False(t, ok)

	h := hashBuilt(name)
	assert.Regexp(t, hexHash, h)
	assert.NotEqual(t, digestString("name:"+name), h)
	assert.Equal(t, digestString("build:"+buildIdentity()+":"+name), h)
	assert.NotEmpty(t, buildIdentity())
}
