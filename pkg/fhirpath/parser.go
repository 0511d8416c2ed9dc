package fhirpath

// node is an AST node.
type node interface {
	pos() int
}

type (
	literalNode struct {
		at    int
		value Collection
	}
	// memberNode navigates the input by name; at the root it may also name a resource type.
	memberNode struct {
		at   int
		name string
	}
	funcNode struct {
		at   int
		name string
		args []node
	}
	// invokeNode evaluates right (a memberNode or funcNode) against the result of left.
	invokeNode struct {
		at    int
		left  node
		right node
	}
	indexNode struct {
		at     int
		target node
		index  node
	}
	unaryNode struct {
		at      int
		op      TokenType
		operand node
	}
	binaryNode struct {
		at          int
		op          string
		left, right node
	}
	extVarNode struct {
		at   int
		name string
	}
	specialNode struct {
		at   int
		name string
	}
)

func (n *literalNode) pos() int { return n.at }
func (n *memberNode) pos() int  { return n.at }
func (n *funcNode) pos() int    { return n.at }
func (n *invokeNode) pos() int  { return n.at }
func (n *indexNode) pos() int   { return n.at }
func (n *unaryNode) pos() int   { return n.at }
func (n *binaryNode) pos() int  { return n.at }
func (n *extVarNode) pos() int  { return n.at }
func (n *specialNode) pos() int { return n.at }

// Binding powers, loosest first.
const (
	bpImplies  = 10
	bpOr       = 20
	bpAnd      = 30
	bpMember   = 40
	bpEquality = 50
	bpCompare  = 60
	bpUnion    = 70
	bpType     = 80
	bpAdditive = 90
	bpMult     = 100
	bpUnary    = 110
	bpPostfix  = 120
)

// keywordOps are infix operators spelled as identifiers.
var keywordOps = map[string]int{
	"implies":  bpImplies,
	"or":       bpOr,
	"xor":      bpOr,
	"and":      bpAnd,
	"in":       bpMember,
	"contains": bpMember,
	"is":       bpType,
	"as":       bpType,
	"div":      bpMult,
	"mod":      bpMult,
}

var symbolOps = map[TokenType]struct {
	op string
	bp int
}{
	EQ:         {"=", bpEquality},
	NEQ:        {"!=", bpEquality},
	EQUIV:      {"~", bpEquality},
	NEQUIV:     {"!~", bpEquality},
	LESS:       {"<", bpCompare},
	LESS_EQ:    {"<=", bpCompare},
	GREATER:    {">", bpCompare},
	GREATER_EQ: {">=", bpCompare},
	PIPE:       {"|", bpUnion},
	PLUS:       {"+", bpAdditive},
	MINUS:      {"-", bpAdditive},
	AMP:        {"&", bpAdditive},
	MULT:       {"*", bpMult},
	SLASH:      {"/", bpMult},
}

type parser struct {
	toks []Token
	i    int
}

func parse(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().Type == EOF {
		return nil, syntaxErr(0, "empty expression")
	}
	n, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != EOF {
		return nil, syntaxErr(t.Pos, "unexpected %q", t.Lexeme)
	}
	return n, nil
}

func (p *parser) peek() Token { return p.toks[p.i] }

func (p *parser) advance() Token {
	t := p.toks[p.i]
	if t.Type != EOF {
		p.i++
	}
	return t
}

func (p *parser) need(tt TokenType, what string) (Token, error) {
	t := p.peek()
	if t.Type != tt {
		if t.Type == EOF {
			return t, syntaxErr(t.Pos, "expected %s, got end of expression", what)
		}
		return t, syntaxErr(t.Pos, "expected %s, got %q", what, t.Lexeme)
	}
	return p.advance(), nil
}

// lbp returns the left binding power of the upcoming infix/postfix token.
func (p *parser) lbp() (int, string) {
	t := p.peek()
	switch t.Type {
	case PERIOD, LSQUARE:
		return bpPostfix, ""
	case IDENT:
		if t.Quoted {
			return 0, ""
		}
		name := t.Literal.(string)
		if bp, ok := keywordOps[name]; ok {
			return bp, name
		}
	default:
		if op, ok := symbolOps[t.Type]; ok {
			return op.bp, op.op
		}
	}
	return 0, ""
}

func (p *parser) expr(minBP int) (node, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		bp, op := p.lbp()
		if bp == 0 || bp <= minBP {
			return left, nil
		}
		t := p.advance()
		switch t.Type {
		case PERIOD:
			right, err := p.invocation()
			if err != nil {
				return nil, err
			}
			left = &invokeNode{at: t.Pos, left: left, right: right}
		case LSQUARE:
			index, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.need(RSQUARE, "']'"); err != nil {
				return nil, err
			}
			left = &indexNode{at: t.Pos, target: left, index: index}
		default:
			if op == "is" || op == "as" {
				return nil, unsupportedErr(t.Pos, "type operator '%s' is not supported", op)
			}
			right, err := p.expr(bp)
			if err != nil {
				return nil, err
			}
			left = &binaryNode{at: t.Pos, op: op, left: left, right: right}
		}
	}
}

func (p *parser) prefix() (node, error) {
	t := p.advance()
	switch t.Type {
	case INTEGER, DECIMAL:
		return p.numberOrQuantity(t)
	case STRING, DATE, DATETIME, TIME:
		return &literalNode{at: t.Pos, value: Collection{t.Literal}}, nil
	case IDENT:
		if !t.Quoted {
			switch t.Literal.(string) {
			case "true":
				return &literalNode{at: t.Pos, value: Collection{true}}, nil
			case "false":
				return &literalNode{at: t.Pos, value: Collection{false}}, nil
			}
		}
		return p.identifier(t)
	case EXTVAR:
		return &extVarNode{at: t.Pos, name: t.Literal.(string)}, nil
	case SPECIAL:
		return &specialNode{at: t.Pos, name: t.Literal.(string)}, nil
	case LROUND:
		inner, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RROUND, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case LCURLY:
		if _, err := p.need(RCURLY, "'}'"); err != nil {
			return nil, err
		}
		return &literalNode{at: t.Pos, value: Collection{}}, nil
	case MINUS, PLUS:
		operand, err := p.expr(bpUnary)
		if err != nil {
			return nil, err
		}
		return &unaryNode{at: t.Pos, op: t.Type, operand: operand}, nil
	case EOF:
		return nil, syntaxErr(t.Pos, "unexpected end of expression")
	}
	return nil, syntaxErr(t.Pos, "unexpected %q", t.Lexeme)
}

func (p *parser) numberOrQuantity(t Token) (node, error) {
	var value float64
	switch v := t.Literal.(type) {
	case int64:
		value = float64(v)
	case float64:
		value = v
	}
	next := p.peek()
	switch {
	case next.Type == STRING:
		p.advance()
		return &literalNode{at: t.Pos, value: Collection{Quantity{Value: value, Unit: next.Literal.(string)}}}, nil
	case next.Type == IDENT && !next.Quoted:
		if unit, ok := calendarUnits[next.Literal.(string)]; ok && calendarKeyword(unit, next.Literal.(string)) {
			p.advance()
			return &literalNode{at: t.Pos, value: Collection{Quantity{Value: value, Unit: unit}}}, nil
		}
	}
	return &literalNode{at: t.Pos, value: Collection{t.Literal}}, nil
}

// identifier parses a member name or a function call starting at an identifier token.
func (p *parser) identifier(t Token) (node, error) {
	name := t.Literal.(string)
	if p.peek().Type != LROUND || t.Quoted {
		return &memberNode{at: t.Pos, name: name}, nil
	}
	p.advance()
	if _, ok := functions[name]; !ok {
		return nil, unsupportedErr(t.Pos, "unsupported function '%s'", name)
	}
	var args []node
	if p.peek().Type != RROUND {
		for {
			arg, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.need(RROUND, "')'"); err != nil {
		return nil, err
	}
	def := functions[name]
	if len(args) < def.minArgs || (def.maxArgs >= 0 && len(args) > def.maxArgs) {
		return nil, syntaxErr(t.Pos, "wrong number of arguments for %s(): %d", name, len(args))
	}
	return &funcNode{at: t.Pos, name: name, args: args}, nil
}

func (p *parser) invocation() (node, error) {
	t := p.advance()
	if t.Type != IDENT {
		return nil, syntaxErr(t.Pos, "expected identifier or function after '.'")
	}
	return p.identifier(t)
}

// calendarKeyword reports whether word is spelled as a calendar duration keyword
// rather than a UCUM code (which must be quoted).
func calendarKeyword(unit, word string) bool {
	return word == unit || word == unit+"s"
}
