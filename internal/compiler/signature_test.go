package compiler

import (
	"errors"
	"os"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/term"
	fx "github.com/roach88/evarconv/internal/testutil"
)

func compileString(t *testing.T, src string) (*Compiled, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	return CompileSignature(v)
}

// TestCompileSignature_Basic tests that the bundled signature matches the
// hand-built test fixtures.
func TestCompileSignature_Basic(t *testing.T) {
	data, err := os.ReadFile("testdata/basic.cue")
	require.NoError(t, err)
	v := cuecontext.New().CompileBytes(data, cue.Filename("testdata/basic.cue"))

	c, err := CompileSignature(v)
	require.NoError(t, err)

	want, wantReg := fx.Signature()
	for _, name := range []string{"plus", "one", "nat_eqType", "list_eqType", "list_eqb", "sort", "eq_op"} {
		got, ok := c.Sig.Constant(name)
		require.True(t, ok, name)
		exp, _ := want.Constant(name)
		if exp.Body != nil {
			assert.True(t, term.Equal(exp.Body, got.Body), "body of %s", name)
		}
		if exp.Type != nil {
			assert.True(t, term.Equal(exp.Type, got.Type), "type of %s", name)
		}
	}
	for _, name := range []string{"nat", "list", "eqType"} {
		got, ok := c.Sig.Inductive(name)
		require.True(t, ok, name)
		exp, _ := want.Inductive(name)
		assert.Equal(t, exp.NParams, got.NParams, name)
		require.Len(t, got.Constructors, len(exp.Constructors), name)
		for i := range exp.Constructors {
			assert.True(t, term.Equal(exp.Constructors[i].Type, got.Constructors[i].Type),
				"constructor %s", exp.Constructors[i].Name)
		}
	}
	assert.Equal(t, wantReg.Entries(), c.Registry.Entries())

	_, ok := c.Registry.Lookup("eq_op", canonical.Key{Kind: canonical.KeyConst, Name: "list_eqb"})
	assert.True(t, ok)
}

// TestCompileSignature_ForwardReference tests that constants may be used
// before their declaration.
func TestCompileSignature_ForwardReference(t *testing.T) {
	c, err := compileString(t, `
inductives: unit: {type: "Set", constructors: [{name: "tt", type: "unit"}]}
constants: {
	a: {type: "unit", body: "b"}
	b: {type: "unit", body: "tt"}
}
`)
	require.NoError(t, err)
	a, ok := c.Sig.Constant("a")
	require.True(t, ok)
	assert.Equal(t, term.Const{Name: "b"}, a.Body)
}

// TestCompileSignature_Errors tests the positioned errors.
func TestCompileSignature_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{
			name:  "unknown name",
			src:   `constants: a: {type: "foo"}`,
			field: "constants.a.type",
			msg:   "unknown name foo",
		},
		{
			name:  "missing type",
			src:   `constants: a: {body: "Set"}`,
			field: "constants.a.type",
			msg:   "type is required",
		},
		{
			name: "cycle",
			src: `constants: {
	a: {type: "Set", body: "b"}
	b: {type: "Set", body: "a"}
}`,
			field: "constants.a",
			msg:   "cyclic definitions: a -> b -> a",
		},
		{
			name:  "not a structure",
			src:   `inductives: u: {type: "Set", constructors: []}` + "\n" + `structures: u: ["p"]`,
			field: "structures.u",
			msg:   "expected one constructor",
		},
		{
			name: "canonical without structure",
			src: `inductives: u: {type: "Set", constructors: [{name: "tt", type: "u"}]}
constants: c: {type: "u", body: "tt"}
canonical: ["c"]`,
			field: "canonical",
			msg:   "u is not a structure",
		},
		{
			name:  "negative params",
			src:   `inductives: u: {type: "Set", params: -1}`,
			field: "inductives.u.params",
			msg:   "must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

// TestCompileError_Format tests the error string with and without position.
func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "constants.a", Message: "boom"}
	assert.Equal(t, "constants.a: boom", err.Error())

	_, cerr := compileString(t, `constants: a: {type: "foo"}`)
	require.Error(t, cerr)
	assert.Contains(t, cerr.Error(), "test.cue:1:")
}

func TestLoadSignature(t *testing.T) {
	fromFile, err := LoadSignature("testdata/basic.cue")
	require.NoError(t, err)
	assert.Equal(t, 2, fromFile.Registry.Len())

	fromDir, err := LoadSignature("testdata")
	require.NoError(t, err)
	assert.Equal(t, fromFile.Sig.ConstantNames(), fromDir.Sig.ConstantNames())

	_, err = LoadSignature("testdata/missing.cue")
	assert.ErrorContains(t, err, "signature not found")
}
