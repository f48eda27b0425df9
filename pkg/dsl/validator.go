// Package dsl implements the DSL validator (spec §4.1): lex + parse,
// structural completeness, enum validation, scope sanity, and the
// trust-independent Hard-No invariants. validate(text) is a pure
// function: no I/O, no logging, no randomness, deterministic over
// identical input bytes.
package dsl

import (
	"github.com/ssbking/personal-digital-authority/pkg/ast"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
)

// HardNoConfig is the implementer's closed list of credential- and
// financial-action indicators (spec §9 Open Questions: these sets are
// not enumerated by the source spec and must be published per
// deployment). The zero value is not usable; use DefaultHardNoConfig.
type HardNoConfig struct {
	// DeleteActions names verb actions that spec §4.1 step 6a treats as
	// "suggests delete" for the silent/irreversible-deletion Hard-No.
	DeleteActions map[string]bool
	// CredentialActions is the closed set of actions that, regardless
	// of object, always indicate credential access.
	CredentialActions map[string]bool
	// CredentialIdentifierMarkers flags an object identifier as
	// credential-indicating if it contains any of these markers as a
	// path segment (split on '/').
	CredentialIdentifierMarkers map[string]bool
	// FinancialActions is the closed set of verb actions treated as
	// financial mutations for spec §4.1 step 6c.
	FinancialActions map[string]bool
}

// DefaultHardNoConfig is the reference closed-list deployment used by
// this kernel's bundled capability table and reference executors.
func DefaultHardNoConfig() HardNoConfig {
	return HardNoConfig{
		DeleteActions: set("DELETE", "REMOVE", "PURGE", "ERASE", "WIPE"),
		CredentialActions: set(
			"READ_CREDENTIAL", "EXPORT_CREDENTIAL", "SHARE_CREDENTIAL",
			"DISCLOSE_CREDENTIAL", "ROTATE_CREDENTIAL",
		),
		CredentialIdentifierMarkers: set(
			"credential", "credentials", "password", "passwords",
			"secret", "secrets", "token", "tokens", "apikey", "private-key",
		),
		FinancialActions: set("TRANSFER", "PAY", "WITHDRAW", "PURCHASE", "WIRE", "INVEST"),
	}
}

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// Validator runs the §4.1 pipeline against a fixed HardNoConfig.
type Validator struct {
	hardNo HardNoConfig
}

// New constructs a Validator bound to cfg. The kernel's static
// configuration loads cfg once at startup and it is never mutated.
func New(cfg HardNoConfig) *Validator {
	return &Validator{hardNo: cfg}
}

// Result is the Valid(AST) | Invalid(error) outcome of Validate.
type Result struct {
	AST *ast.AST
	Err *kernelerrors.Error
}

// Valid reports whether validation succeeded.
func (r Result) Valid() bool { return r.Err == nil }

// Validate runs the full validator pipeline against text, halting at
// the first failing stage in the fixed order spec §4.1 prescribes.
func (v *Validator) Validate(text string) Result {
	p, lexErr := newParser(text)
	if lexErr != nil {
		return invalid(syntaxErrorTo(lexErr))
	}

	blocks, parseErr := p.parseProgram()
	if parseErr != nil {
		return invalid(syntaxErrorTo(parseErr))
	}

	raw, structErr := structural(blocks)
	if structErr != nil {
		return invalid(structErr)
	}

	tree, enumErr := v.enumsAndScope(raw)
	if enumErr != nil {
		return invalid(enumErr)
	}

	if hardErr := v.hardNoCheck(tree); hardErr != nil {
		return invalid(hardErr)
	}

	return Result{AST: &tree}
}

func invalid(err *kernelerrors.Error) Result { return Result{Err: err} }

func syntaxErrorTo(e *syntaxError) *kernelerrors.Error {
	return kernelerrors.New(kernelerrors.SyntaxError, e.msg).AtPosition(e.line, e.column)
}

// rawStatement holds the four required blocks after structural
// validation, still as unvalidated string args.
type rawStatement struct {
	subject, verb, object, meta rawBlock
}

// structural implements §4.1 step 2: exactly one of each of the four
// blocks, in fixed order SUBJECT, VERB, OBJECT, META, with the arity
// each block's schema requires (2, 2, 2, 4 respectively). Any
// deviation — missing block, duplicate, wrong order, wrong arity — is
// MISSING_REQUIRED_FIELD. A META block with more than four arguments is
// reported as AMBIGUOUS_SCOPE (a comma inside what was intended as a
// single scope identifier splits it into extra arguments at the parser
// level, since the grammar has no other way to admit a literal comma).
func structural(blocks []rawBlock) (rawStatement, *kernelerrors.Error) {
	if len(blocks) != 4 {
		return rawStatement{}, kernelerrors.New(kernelerrors.MissingRequiredField,
			"statement must contain exactly four blocks: SUBJECT, VERB, OBJECT, META")
	}

	names := [4]string{"SUBJECT", "VERB", "OBJECT", "META"}
	arities := [4]int{2, 2, 2, 4}
	for i, want := range names {
		b := blocks[i]
		if b.Name != want {
			return rawStatement{}, kernelerrors.Newf(kernelerrors.MissingRequiredField,
				"expected %s block at position %d, found %s", want, i+1, b.Name)
		}
		if want == "META" && len(b.Args) > arities[i] {
			return rawStatement{}, kernelerrors.New(kernelerrors.AmbiguousScope,
				"scope must be a single unambiguous identifier, not a comma-separated list")
		}
		if len(b.Args) != arities[i] {
			return rawStatement{}, kernelerrors.Newf(kernelerrors.MissingRequiredField,
				"%s block requires exactly %d field(s), got %d", want, arities[i], len(b.Args))
		}
	}

	return rawStatement{subject: blocks[0], verb: blocks[1], object: blocks[2], meta: blocks[3]}, nil
}

// enumsAndScope implements §4.1 steps 3-5: enum validation, metadata
// completeness, and scope sanity.
func (v *Validator) enumsAndScope(raw rawStatement) (ast.AST, *kernelerrors.Error) {
	subjectType := ast.SubjectType(raw.subject.Args[0])
	if subjectType != ast.SubjectUser && subjectType != ast.SubjectSystem {
		return ast.AST{}, kernelerrors.Newf(kernelerrors.UnknownSubjectType, "unknown subject type %q", raw.subject.Args[0]).
			WithContext("got", raw.subject.Args[0])
	}

	verbClass := ast.VerbClass(raw.verb.Args[0])
	if verbClass != ast.VerbMutate && verbClass != ast.VerbTransform && verbClass != ast.VerbDisseminate {
		return ast.AST{}, kernelerrors.Newf(kernelerrors.UnknownVerbClass, "unknown verb class %q", raw.verb.Args[0]).
			WithContext("got", raw.verb.Args[0])
	}

	objectType := ast.ObjectType(raw.object.Args[0])
	switch objectType {
	case ast.ObjectFile, ast.ObjectFolder, ast.ObjectEmail, ast.ObjectDataset, ast.ObjectDevice:
	default:
		return ast.AST{}, kernelerrors.Newf(kernelerrors.UnknownObjectType, "unknown object type %q", raw.object.Args[0]).
			WithContext("got", raw.object.Args[0])
	}

	scope := raw.meta.Args[0]
	if scope == "" {
		return ast.AST{}, kernelerrors.New(kernelerrors.MissingRequiredField, "scope must not be empty")
	}

	reversible, ok := parseBool(raw.meta.Args[1])
	if !ok {
		return ast.AST{}, kernelerrors.Newf(kernelerrors.InvalidMetadataValue, "reversible must be literal true/false, got %q", raw.meta.Args[1])
	}

	sensitivity := ast.Sensitivity(raw.meta.Args[2])
	switch sensitivity {
	case ast.SensitivityLow, ast.SensitivityMedium, ast.SensitivityHigh:
	default:
		return ast.AST{}, kernelerrors.Newf(kernelerrors.InvalidMetadataValue, "unknown sensitivity %q", raw.meta.Args[2])
	}

	hrcRequired, ok := parseBool(raw.meta.Args[3])
	if !ok {
		return ast.AST{}, kernelerrors.Newf(kernelerrors.InvalidMetadataValue, "hrc_required must be literal true/false, got %q", raw.meta.Args[3])
	}

	return ast.AST{
		Subject: ast.Subject{Type: subjectType, ID: raw.subject.Args[1]},
		Verb:    ast.Verb{Class: verbClass, Action: raw.verb.Args[1]},
		Object:  ast.Object{Type: objectType, ID: raw.object.Args[1]},
		Metadata: ast.Metadata{
			Scope:       scope,
			Reversible:  reversible,
			Sensitivity: sensitivity,
			HRCRequired: hrcRequired,
		},
	}, nil
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// hardNoCheck implements §4.1 step 6: absolute, trust-independent
// invariants. These are evaluated last and override everything else —
// no amount of trust or HRC confirmation downstream changes the
// outcome, because the lease manager and executor never see a
// statement that fails here.
func (v *Validator) hardNoCheck(tree ast.AST) *kernelerrors.Error {
	if tree.Verb.Class == ast.VerbMutate && v.hardNo.DeleteActions[tree.Verb.Action] && !tree.Metadata.Reversible {
		return kernelerrors.New(kernelerrors.HardNoViolation, "irreversible deletion is forbidden")
	}

	if v.hardNo.CredentialActions[tree.Verb.Action] || identifiesCredential(tree.Object.ID, v.hardNo.CredentialIdentifierMarkers) {
		return kernelerrors.New(kernelerrors.HardNoViolation, "credential access is forbidden")
	}

	if v.hardNo.FinancialActions[tree.Verb.Action] && tree.Metadata.Sensitivity == ast.SensitivityHigh && !tree.Metadata.HRCRequired {
		return kernelerrors.New(kernelerrors.HardNoViolation, "high-sensitivity financial mutation requires hrc_required")
	}

	return nil
}

func identifiesCredential(id string, markers map[string]bool) bool {
	segment := ""
	for _, r := range id + "/" {
		if r == '/' {
			if markers[segment] {
				return true
			}
			segment = ""
			continue
		}
		segment += string(r)
	}
	return false
}
