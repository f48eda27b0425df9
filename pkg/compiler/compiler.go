// Package compiler implements the blueprint compiler (spec §4.2): a
// pure function from AST to TaskManifest. compile(ast) is
// deterministic — identical AST always yields a byte-identical
// manifest when canonically serialized.
//
// Open Question resolution (spec §9): this deployment fixes task_id
// derivation to scheme (a), lower-case hex SHA-256 of the canonical
// AST bytes. UUID v5 is not wired — one scheme must be chosen and
// fixed per deployment, and SHA-256 needs no additional namespace
// configuration to stay deterministic.
package compiler

import (
	"strings"

	"github.com/ssbking/personal-digital-authority/pkg/ast"
	"github.com/ssbking/personal-digital-authority/pkg/canonical"
	"github.com/ssbking/personal-digital-authority/pkg/capability"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

// Compiler compiles a validated AST into a TaskManifest.
type Compiler struct{}

// New constructs a Compiler. Stateless: Compile is pure.
func New() *Compiler { return &Compiler{} }

// Compile implements spec §4.2's pipeline: canonical serialization,
// task_id derivation, capability resolution, input binding, and
// constraint propagation, in that order.
func (c *Compiler) Compile(tree ast.AST) (manifest.TaskManifest, *kernelerrors.Error) {
	astHash, err := tree.Hash()
	if err != nil {
		return manifest.TaskManifest{}, kernelerrors.Wrap(kernelerrors.CompilationFailure, "failed to hash AST", err)
	}

	// task_id is independent of provenance.ast_hash in principle (two
	// distinct derivations per spec §4.2), but both are hex SHA-256 of
	// the same canonical bytes in this deployment, so they coincide.
	taskID := astHash

	capID, ok := capability.Resolve(string(tree.Verb.Class), string(tree.Object.Type), tree.Verb.Action)
	if !ok {
		return manifest.TaskManifest{}, kernelerrors.Newf(kernelerrors.UnknownCapability,
			"no capability registered for (%s, %s, %s)", tree.Verb.Class, tree.Object.Type, tree.Verb.Action)
	}

	// Unreachable by construction: every ID capability.Resolve can return
	// has a schema registered for it in pkg/capability's init(). Kept as
	// a guard against the two tables drifting apart rather than as a
	// reachable error path.
	schema, ok := capability.Lookup(capID)
	if !ok {
		return manifest.TaskManifest{}, kernelerrors.Newf(kernelerrors.UnsupportedAction,
			"capability %s has no registered input schema", capID)
	}

	inputs, bindErr := bindInputs(tree, schema)
	if bindErr != nil {
		return manifest.TaskManifest{}, bindErr
	}

	return manifest.TaskManifest{
		TaskID:       taskID,
		CapabilityID: string(capID),
		Inputs:       inputs,
		Constraints: manifest.Constraints{
			Scope:       tree.Metadata.Scope,
			Reversible:  tree.Metadata.Reversible,
			Sensitivity: tree.Metadata.Sensitivity,
			HRCRequired: tree.Metadata.HRCRequired,
		},
		Provenance: manifest.Provenance{ASTHash: astHash},
	}, nil
}

// slots is the fixed, ordered list of raw strings the AST makes
// available to the compiler's input binding step (see package doc and
// pkg/capability doc for why these four, in this order).
func slots(tree ast.AST) []string {
	return []string{tree.Object.ID, tree.Subject.ID, tree.Metadata.Scope, tree.Verb.Action}
}

func bindInputs(tree ast.AST, schema capability.Schema) (map[string]string, *kernelerrors.Error) {
	if len(schema.InputKeys) > 4 {
		return nil, kernelerrors.Newf(kernelerrors.InvalidBinding,
			"capability %s requires %d inputs but only 4 AST slots are available", schema.ID, len(schema.InputKeys))
	}

	raw := slots(tree)
	inputs := make(map[string]string, len(schema.InputKeys)+len(schema.Constants))
	for i, key := range schema.InputKeys {
		value := raw[i]
		if strings.TrimSpace(value) == "" {
			return nil, kernelerrors.Newf(kernelerrors.InvalidBinding, "capability %s missing required input %q", schema.ID, key)
		}
		inputs[key] = value
	}
	for key, value := range schema.Constants {
		inputs[key] = value
	}

	genericInputs := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		genericInputs[k] = v
	}
	if err := schema.Validate(genericInputs); err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.InvalidBinding, "input schema validation failed for "+string(schema.ID), err)
	}

	return inputs, nil
}

// canonicalBytesForManifest re-derives a manifest's canonical bytes
// without re-running the compiler; CanonicalBytes is its exported entry
// point.
func canonicalBytesForManifest(m manifest.TaskManifest) ([]byte, error) {
	return canonical.Encode(m.Canonical())
}

// CanonicalBytes returns the canonical JSON encoding of m.
func CanonicalBytes(m manifest.TaskManifest) ([]byte, error) {
	return canonicalBytesForManifest(m)
}
