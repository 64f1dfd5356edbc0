package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/marchhare/agileboard/internal/models"
)

// Transition conditions are small boolean expressions evaluated against a
// read-only snapshot of the issue. The grammar is a fixed whitelist:
//
//	expr   := or
//	or     := and ("or" and)*
//	and    := unary ("and" unary)*
//	unary  := "not" unary | cmp
//	cmp    := term (("==" | "!=" | "<" | "<=" | ">" | ">=") term)?
//	term   := ident "(" args ")" | ident | string | number | bool | "(" expr ")"
//
// Identifiers resolve to issue fields; the only callables are today(),
// len(x) and exists(field). There is no assignment, no indexing, and no
// access to anything outside the snapshot.

// Snapshot is the read-only view of an issue a condition evaluates against.
// A nil value means the field is unset.
type Snapshot map[string]interface{}

// IssueSnapshot builds the evaluation snapshot for an issue. Assignees must
// be preloaded for assignee_count to be meaningful.
func IssueSnapshot(issue *models.Issue) Snapshot {
	snap := Snapshot{
		"key":                issue.Key,
		"project":            issue.ProjectKey,
		"summary":            issue.Summary,
		"description":        issue.Description,
		"type":               issue.Type,
		"priority":           issue.Priority,
		"status":             issue.Status,
		"reporter":           issue.Reporter,
		"original_estimate":  float64(issue.OriginalEstimate),
		"remaining_estimate": float64(issue.RemainingEstimate),
		"time_spent":         float64(issue.TimeSpent),
		"assignee_count":     float64(len(issue.Assignees)),
		"sprinted":           issue.SprintID != nil,
	}
	if issue.StoryPoints != nil {
		snap["story_points"] = float64(*issue.StoryPoints)
	} else {
		snap["story_points"] = nil
	}
	return snap
}

// ParseCondition compiles a condition expression. An empty or blank
// expression parses to nil, meaning unconditional.
func ParseCondition(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("workflow: condition %q: %w: %v", src, ErrConditionEvaluation, err)
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("workflow: condition %q: %w: %v", src, ErrConditionEvaluation, err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("workflow: condition %q: %w: unexpected %q", src, ErrConditionEvaluation, p.toks[p.pos].text)
	}
	return expr, nil
}

// EvalCondition parses and evaluates a condition against a snapshot. The
// result must be boolean; any parse, type, or runtime failure is reported
// as ErrConditionEvaluation.
func EvalCondition(src string, snap Snapshot) (bool, error) {
	expr, err := ParseCondition(src)
	if err != nil {
		return false, err
	}
	if expr == nil {
		return true, nil
	}
	v, err := expr.eval(snap)
	if err != nil {
		return false, fmt.Errorf("workflow: condition %q: %w: %v", src, ErrConditionEvaluation, err)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("workflow: condition %q: %w: result is %T, not boolean", src, ErrConditionEvaluation, v)
	}
	return b, nil
}

// Expr is a compiled condition node.
type Expr interface {
	eval(snap Snapshot) (interface{}, error)
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	i := 0
	for i < len(rs) {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(rs) && rs[j] != quote {
				j++
			}
			if j == len(rs) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, string(rs[i+1 : j])})
			i = j + 1
		case r == '=' || r == '!' || r == '<' || r == '>':
			op := string(r)
			if i+1 < len(rs) && rs[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q", op)
			}
			toks = append(toks, token{tokOp, op})
		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(rs[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, string(rs[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos < len(p.toks) {
		return p.toks[p.pos], true
	}
	return token{}, false
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) expect(kind tokenKind, text string) error {
	t, ok := p.next()
	if !ok || t.kind != kind {
		return fmt.Errorf("expected %q", text)
	}
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokIdent || t.text != "or" {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: "or", left: left, right: right}
	}
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokIdent || t.text != "and" {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: "and", left: left, right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if t, ok := p.peek(); ok && t.kind == tokIdent && t.text == "not" {
		p.pos++
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	t, ok := p.peek()
	if !ok || t.kind != tokOp {
		return left, nil
	}
	p.pos++
	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	return &cmpExpr{op: t.text, left: left, right: right}, nil
}

func (p *parser) parseTerm() (Expr, error) {
	t, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return &litExpr{val: n}, nil
	case tokString:
		return &litExpr{val: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &litExpr{val: true}, nil
		case "false":
			return &litExpr{val: false}, nil
		}
		if nt, ok := p.peek(); ok && nt.kind == tokLParen {
			return p.parseCall(t.text)
		}
		return &fieldExpr{name: t.text}, nil
	default:
		return nil, fmt.Errorf("unexpected %q", t.text)
	}
}

func (p *parser) parseCall(name string) (Expr, error) {
	p.pos++ // consume "("
	call := &callExpr{name: name}
	if t, ok := p.peek(); ok && t.kind == tokRParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
			t, ok := p.next()
			if !ok {
				return nil, fmt.Errorf("unterminated call to %s", name)
			}
			if t.kind == tokRParen {
				break
			}
			if t.kind != tokComma {
				return nil, fmt.Errorf("expected , or ) in call to %s", name)
			}
		}
	}
	switch name {
	case "today":
		if len(call.args) != 0 {
			return nil, fmt.Errorf("today() takes no arguments")
		}
	case "len", "exists":
		if len(call.args) != 1 {
			return nil, fmt.Errorf("%s() takes exactly one argument", name)
		}
	default:
		return nil, fmt.Errorf("unknown function %q", name)
	}
	return call, nil
}

type litExpr struct{ val interface{} }

func (e *litExpr) eval(Snapshot) (interface{}, error) { return e.val, nil }

type fieldExpr struct{ name string }

func (e *fieldExpr) eval(snap Snapshot) (interface{}, error) {
	v, ok := snap[e.name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", e.name)
	}
	return v, nil
}

type notExpr struct{ inner Expr }

func (e *notExpr) eval(snap Snapshot) (interface{}, error) {
	v, err := e.inner.eval(snap)
	if err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("not applied to %T", v)
	}
	return !b, nil
}

type boolExpr struct {
	op          string
	left, right Expr
}

func (e *boolExpr) eval(snap Snapshot) (interface{}, error) {
	lv, err := e.left.eval(snap)
	if err != nil {
		return nil, err
	}
	lb, ok := lv.(bool)
	if !ok {
		return nil, fmt.Errorf("%s applied to %T", e.op, lv)
	}
	// Short circuit before evaluating the right side.
	if e.op == "and" && !lb {
		return false, nil
	}
	if e.op == "or" && lb {
		return true, nil
	}
	rv, err := e.right.eval(snap)
	if err != nil {
		return nil, err
	}
	rb, ok := rv.(bool)
	if !ok {
		return nil, fmt.Errorf("%s applied to %T", e.op, rv)
	}
	return rb, nil
}

type cmpExpr struct {
	op          string
	left, right Expr
}

func (e *cmpExpr) eval(snap Snapshot) (interface{}, error) {
	lv, err := e.left.eval(snap)
	if err != nil {
		return nil, err
	}
	rv, err := e.right.eval(snap)
	if err != nil {
		return nil, err
	}

	// Unset fields compare equal to nothing but nil itself.
	if lv == nil || rv == nil {
		switch e.op {
		case "==":
			return lv == nil && rv == nil, nil
		case "!=":
			return !(lv == nil && rv == nil), nil
		default:
			return nil, fmt.Errorf("ordered comparison with unset field")
		}
	}

	switch l := lv.(type) {
	case float64:
		r, ok := rv.(float64)
		if !ok {
			return nil, fmt.Errorf("comparing number with %T", rv)
		}
		return compareOrdered(e.op, l == r, l < r)
	case string:
		r, ok := rv.(string)
		if !ok {
			return nil, fmt.Errorf("comparing string with %T", rv)
		}
		return compareOrdered(e.op, l == r, l < r)
	case bool:
		r, ok := rv.(bool)
		if !ok {
			return nil, fmt.Errorf("comparing bool with %T", rv)
		}
		switch e.op {
		case "==":
			return l == r, nil
		case "!=":
			return l != r, nil
		default:
			return nil, fmt.Errorf("ordered comparison of booleans")
		}
	default:
		return nil, fmt.Errorf("cannot compare %T", lv)
	}
}

func compareOrdered(op string, eq, lt bool) (interface{}, error) {
	switch op {
	case "==":
		return eq, nil
	case "!=":
		return !eq, nil
	case "<":
		return lt, nil
	case "<=":
		return lt || eq, nil
	case ">":
		return !lt && !eq, nil
	case ">=":
		return !lt, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

type callExpr struct {
	name string
	args []Expr
}

func (e *callExpr) eval(snap Snapshot) (interface{}, error) {
	switch e.name {
	case "today":
		return timeNow().Format("2006-01-02"), nil
	case "len":
		v, err := e.args[0].eval(snap)
		if err != nil {
			return nil, err
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("len applied to %T", v)
		}
		return float64(len(s)), nil
	case "exists":
		f, ok := e.args[0].(*fieldExpr)
		if !ok {
			return nil, fmt.Errorf("exists requires a field name")
		}
		v, found := snap[f.name]
		if !found || v == nil {
			return false, nil
		}
		switch t := v.(type) {
		case string:
			return t != "", nil
		case float64:
			return t != 0, nil
		case bool:
			return t, nil
		default:
			return true, nil
		}
	}
	return nil, fmt.Errorf("unknown function %q", e.name)
}

// timeNow is swapped in tests.
var timeNow = time.Now
