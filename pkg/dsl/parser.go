package dsl

// rawBlock is a generically-parsed `NAME(arg, arg, ...)` block, before
// any structural or semantic validation. The grammar fixes exactly
// which names/arities are legal (SUBJECT/2, VERB/2, OBJECT/2, META/4);
// the parser only enforces well-formedness of the `NAME(args)` shape
// itself, leaving block-identity and arity checks to the structural
// stage (spec §4.1 step 2) so that SYNTAX_ERROR and
// MISSING_REQUIRED_FIELD stay cleanly separated.
type rawBlock struct {
	Name string
	Args []string
	Pos  Position
}

// Position re-exports a source location for callers outside this file.
type Position struct {
	Line   int
	Column int
}

// parser turns lexer tokens into a sequence of rawBlocks.
type parser struct {
	lex    *lexer
	tok    Token
	atEOF  bool
}

func newParser(text string) (*parser, *syntaxError) {
	p := &parser{lex: newLexer(text)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() *syntaxError {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	p.atEOF = tok.Type == TokenEOF
	return nil
}

// parseProgram parses the full statement into its raw blocks.
func (p *parser) parseProgram() ([]rawBlock, *syntaxError) {
	var blocks []rawBlock
	for !p.atEOF {
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (p *parser) parseBlock() (rawBlock, *syntaxError) {
	if p.tok.Type != TokenIdent {
		return rawBlock{}, &syntaxError{line: p.tok.Line, column: p.tok.Column, msg: "expected block name"}
	}
	name := p.tok.Value
	pos := Position{Line: p.tok.Line, Column: p.tok.Column}
	if err := p.advance(); err != nil {
		return rawBlock{}, err
	}

	if p.tok.Type != TokenLParen {
		return rawBlock{}, &syntaxError{line: p.tok.Line, column: p.tok.Column, msg: "expected '(' after " + name}
	}
	if err := p.advance(); err != nil {
		return rawBlock{}, err
	}

	var args []string
	for {
		if p.tok.Type != TokenIdent {
			return rawBlock{}, &syntaxError{line: p.tok.Line, column: p.tok.Column, msg: "expected identifier in " + name + "(...)"}
		}
		args = append(args, p.tok.Value)
		if err := p.advance(); err != nil {
			return rawBlock{}, err
		}

		if p.tok.Type == TokenComma {
			if err := p.advance(); err != nil {
				return rawBlock{}, err
			}
			continue
		}
		break
	}

	if p.tok.Type != TokenRParen {
		return rawBlock{}, &syntaxError{line: p.tok.Line, column: p.tok.Column, msg: "expected ')' to close " + name + "(...)"}
	}
	if err := p.advance(); err != nil {
		return rawBlock{}, err
	}

	return rawBlock{Name: name, Args: args, Pos: pos}, nil
}
