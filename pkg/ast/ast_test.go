package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssbking/personal-digital-authority/pkg/ast"
)

func sampleAST() ast.AST {
	return ast.AST{
		Subject: ast.Subject{Type: ast.SubjectUser, ID: "user-1"},
		Verb:    ast.Verb{Class: ast.VerbMutate, Action: "MOVE"},
		Object:  ast.Object{Type: ast.ObjectFile, ID: "/home/user/doc.txt"},
		Metadata: ast.Metadata{
			Scope:       "documents",
			Reversible:  true,
			Sensitivity: ast.SensitivityLow,
			HRCRequired: false,
		},
	}
}

func TestHash_DeterministicForIdenticalAST(t *testing.T) {
	a := sampleAST()
	b := sampleAST()

	h1, err := a.Hash()
	require.NoError(t, err)
	h2, err := b.Hash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // lower-case hex SHA-256
}

func TestHash_DiffersWhenAnyFieldChanges(t *testing.T) {
	base := sampleAST()
	baseHash, err := base.Hash()
	require.NoError(t, err)

	variants := []ast.AST{
		func() ast.AST { a := sampleAST(); a.Subject.ID = "user-2"; return a }(),
		func() ast.AST { a := sampleAST(); a.Verb.Action = "COPY"; return a }(),
		func() ast.AST { a := sampleAST(); a.Object.ID = "/home/user/other.txt"; return a }(),
		func() ast.AST { a := sampleAST(); a.Metadata.Reversible = false; return a }(),
		func() ast.AST { a := sampleAST(); a.Metadata.HRCRequired = true; return a }(),
	}

	for _, v := range variants {
		h, err := v.Hash()
		require.NoError(t, err)
		assert.NotEqual(t, baseHash, h)
	}
}

func TestCanonicalBytes_StableAcrossCalls(t *testing.T) {
	a := sampleAST()
	b1, err := a.CanonicalBytes()
	require.NoError(t, err)
	b2, err := a.CanonicalBytes()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}
