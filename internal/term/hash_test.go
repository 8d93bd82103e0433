package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemIDDeterminism(t *testing.T) {
	ctx := Context{{Name: "x", Type: Ind{Name: "nat"}}}
	left := MkApp(Evar{ID: 1, Args: []Term{Var{Name: "x"}}})
	right := MkApp(Const{Name: "f"}, Var{Name: "x"})

	id1, err := ProblemID(ctx, left, right, "eq")
	require.NoError(t, err)
	id2, err := ProblemID(ctx, left, right, "eq")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "ProblemID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestProblemIDChangesWithInput(t *testing.T) {
	ctx := Context{{Name: "x", Type: Ind{Name: "nat"}}}
	a, b := Var{Name: "x"}, Const{Name: "zero"}

	id1, _ := ProblemID(ctx, a, b, "eq")
	id2, _ := ProblemID(ctx, b, a, "eq")
	id3, _ := ProblemID(ctx, a, b, "leq")
	id4, _ := ProblemID(nil, a, b, "eq")

	assert.NotEqual(t, id1, id2, "orientation is part of the identity")
	assert.NotEqual(t, id1, id3, "variance is part of the identity")
	assert.NotEqual(t, id1, id4, "context is part of the identity")
}

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	got, err := MarshalCanonical(Construct{Ind: "nat", Index: 1})
	require.NoError(t, err)

	assert.Equal(t, `{"construct":"nat","index":1}`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "é" precomposed vs "e" + combining acute
	composed, err := MarshalCanonical(Const{Name: "caf\u00e9"})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(Const{Name: "cafe\u0301"})
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(Const{Name: "a<b"})
	require.NoError(t, err)

	assert.Equal(t, `{"const":"a<b"}`, string(got))
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestHashDistinguishesShapes(t *testing.T) {
	assert.NotEqual(t, Hash(Const{Name: "a"}), Hash(Ind{Name: "a"}))
	assert.NotEqual(t, Hash(Rel{Index: 0}), Hash(Rel{Index: 1}))
	assert.Equal(t, Hash(MkApp(Const{Name: "f"}, Rel{Index: 0})), Hash(MkApp(Const{Name: "f"}, Rel{Index: 0})))
}
