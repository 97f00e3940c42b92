package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Calculator evaluates arithmetic expressions deterministically, without a
// model round trip. Supported: + - * / % ^, parentheses, unary minus.
type Calculator struct{}

// NewCalculator creates the built-in calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

// Name implements Tool.
func (c *Calculator) Name() string { return "calculator" }

// Description implements Tool.
func (c *Calculator) Description() string {
	return "Evaluates an arithmetic expression. Supports + - * / % ^ and parentheses. " +
		"Use for any numeric computation such as fee totals or percentage changes."
}

// Schema implements Tool.
func (c *Calculator) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"expression": {"type": "string", "description": "The arithmetic expression to evaluate"}
		},
		"required": ["expression"]
	}`)
}

// Invoke implements Tool.
func (c *Calculator) Invoke(_ context.Context, args map[string]any) (string, error) {
	expr, _ := args["expression"].(string)
	if strings.TrimSpace(expr) == "" {
		return "", fmt.Errorf("expression is required")
	}
	v, err := Evaluate(expr)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

type calcToken struct {
	kind  byte // 'n' number, 'o' operator, '(' or ')'
	value float64
	op    byte
}

type operatorInfo struct {
	precedence int
	rightAssoc bool
}

var operators = map[byte]operatorInfo{
	'+': {precedence: 1},
	'-': {precedence: 1},
	'*': {precedence: 2},
	'/': {precedence: 2},
	'%': {precedence: 2},
	'^': {precedence: 3, rightAssoc: true},
	'u': {precedence: 4, rightAssoc: true}, // unary minus
}

// Evaluate parses and computes an arithmetic expression via the
// shunting-yard algorithm.
func Evaluate(expr string) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	rpn, err := toRPN(tokens)
	if err != nil {
		return 0, err
	}
	return evalRPN(rpn)
}

func tokenize(expr string) ([]calcToken, error) {
	var out []calcToken
	prevOperand := false
	for i := 0; i < len(expr); {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch >= '0' && ch <= '9' || ch == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			v, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", expr[i:j])
			}
			out = append(out, calcToken{kind: 'n', value: v})
			prevOperand = true
			i = j
		case ch == '(':
			out = append(out, calcToken{kind: '('})
			prevOperand = false
			i++
		case ch == ')':
			out = append(out, calcToken{kind: ')'})
			prevOperand = true
			i++
		case ch == '-' && !prevOperand:
			out = append(out, calcToken{kind: 'o', op: 'u'})
			i++
		case operators[ch].precedence > 0:
			out = append(out, calcToken{kind: 'o', op: ch})
			prevOperand = false
			i++
		default:
			if unicode.IsLetter(rune(ch)) {
				return nil, fmt.Errorf("unexpected identifier at position %d", i)
			}
			return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return out, nil
}

func toRPN(tokens []calcToken) ([]calcToken, error) {
	var output, stack []calcToken
	for _, tok := range tokens {
		switch tok.kind {
		case 'n':
			output = append(output, tok)
		case 'o':
			info := operators[tok.op]
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind != 'o' {
					break
				}
				topInfo := operators[top.op]
				if topInfo.precedence > info.precedence ||
					(topInfo.precedence == info.precedence && !info.rightAssoc) {
					output = append(output, top)
					stack = stack[:len(stack)-1]
					continue
				}
				break
			}
			stack = append(stack, tok)
		case '(':
			stack = append(stack, tok)
		case ')':
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == '(' {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return nil, fmt.Errorf("unbalanced parentheses")
			}
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.kind == '(' {
			return nil, fmt.Errorf("unbalanced parentheses")
		}
		output = append(output, top)
	}
	return output, nil
}

func evalRPN(rpn []calcToken) (float64, error) {
	var stack []float64
	pop := func() (float64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for _, tok := range rpn {
		if tok.kind == 'n' {
			stack = append(stack, tok.value)
			continue
		}
		if tok.op == 'u' {
			v, ok := pop()
			if !ok {
				return 0, fmt.Errorf("malformed expression")
			}
			stack = append(stack, -v)
			continue
		}
		b, okB := pop()
		a, okA := pop()
		if !okA || !okB {
			return 0, fmt.Errorf("malformed expression")
		}
		var v float64
		switch tok.op {
		case '+':
			v = a + b
		case '-':
			v = a - b
		case '*':
			v = a * b
		case '/':
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v = a / b
		case '%':
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v = math.Mod(a, b)
		case '^':
			v = math.Pow(a, b)
		}
		stack = append(stack, v)
	}
	if len(stack) != 1 {
		return 0, fmt.Errorf("malformed expression")
	}
	if math.IsInf(stack[0], 0) || math.IsNaN(stack[0]) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return stack[0], nil
}
