package fhirpath

import (
	"math"
	"strings"
	"time"
)

// Environment resolves %variables.
type Environment interface {
	// Variable returns the value bound to name. found is false when the name is not
	// bound anywhere; err is set when the binding exists but failed to evaluate.
	Variable(name string) (value Collection, found bool, err error)
}

// Vars is a fixed Environment.
type Vars map[string]Collection

// Variable implements Environment.
func (v Vars) Variable(name string) (Collection, bool, error) {
	c, ok := v[name]
	return c, ok, nil
}

var constants = map[string]Collection{
	"ucum":  {"http://unitsofmeasure.org"},
	"sct":   {"http://snomed.info/sct"},
	"loinc": {"http://loinc.org"},
}

type evaluator struct {
	env   Environment
	root  Collection
	now   time.Time
	trace func(name string, c Collection)
}

// frame carries the iteration variables of an enclosing where/select/all/repeat.
type frame struct {
	this  Collection
	index int
	total Collection
}

func (ev *evaluator) focus(fr *frame) Collection {
	if fr != nil {
		return fr.this
	}
	return ev.root
}

func (ev *evaluator) eval(n node, input Collection, fr *frame) (Collection, error) {
	switch n := n.(type) {
	case *literalNode:
		return n.value, nil
	case *memberNode:
		return ev.member(input, n.name), nil
	case *funcNode:
		return ev.call(n, input, fr)
	case *invokeNode:
		left, err := ev.eval(n.left, input, fr)
		if err != nil {
			return nil, err
		}
		return ev.eval(n.right, left, fr)
	case *indexNode:
		target, err := ev.eval(n.target, input, fr)
		if err != nil {
			return nil, err
		}
		idx, err := ev.eval(n.index, ev.focus(fr), fr)
		if err != nil {
			return nil, err
		}
		item, err := idx.Single()
		if err != nil {
			return nil, err
		}
		i, ok := item.(int64)
		if !ok {
			return nil, typeErr("index must be an integer, got %s", typeName(item))
		}
		if i < 0 || int(i) >= len(target) {
			return nil, nil
		}
		return Collection{target[i]}, nil
	case *unaryNode:
		operand, err := ev.eval(n.operand, input, fr)
		if err != nil {
			return nil, err
		}
		if n.op == PLUS {
			return operand, nil
		}
		return negate(operand)
	case *binaryNode:
		return ev.binary(n, input, fr)
	case *extVarNode:
		if c, ok := constants[n.name]; ok {
			return c, nil
		}
		if ev.env == nil {
			return nil, unresolvedErr("undefined variable %%%s", n.name)
		}
		c, found, err := ev.env.Variable(n.name)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, unresolvedErr("undefined variable %%%s", n.name)
		}
		return c, nil
	case *specialNode:
		if fr == nil {
			if n.name == "this" {
				return ev.root, nil
			}
			return nil, unresolvedErr("$%s used outside an iteration", n.name)
		}
		switch n.name {
		case "this":
			return fr.this, nil
		case "index":
			return Collection{int64(fr.index)}, nil
		default:
			return fr.total, nil
		}
	}
	return nil, unsupportedErr(n.pos(), "unsupported expression")
}

// member navigates every item of input by name.
func (ev *evaluator) member(input Collection, name string) Collection {
	var out Collection
	for _, item := range input {
		switch x := item.(type) {
		case map[string]any:
			if rt, ok := x["resourceType"].(string); ok && rt == name {
				out = append(out, x)
				continue
			}
			out = append(out, field(x, name)...)
		case Quantity:
			switch name {
			case "value":
				out = append(out, x.Value)
			case "unit", "code":
				if x.Unit != "" {
					out = append(out, x.Unit)
				}
			case "system":
				if x.System != "" {
					out = append(out, x.System)
				}
			}
		}
	}
	return out
}

// field reads one key of a complex element, resolving polymorphic value[x] names.
func field(m map[string]any, name string) Collection {
	if v, ok := m[name]; ok {
		return convertField(name, v)
	}
	for _, k := range sortedKeys(m) {
		if len(k) > len(name) && strings.HasPrefix(k, name) && k[len(name)] >= 'A' && k[len(name)] <= 'Z' {
			return convertField(k, m[k])
		}
	}
	return nil
}

// convertField maps raw element values into typed items based on the FHIR field name.
func convertField(key string, v any) Collection {
	items := Normalize(v)
	out := make(Collection, 0, len(items))
	for _, item := range items {
		out = append(out, convertItem(key, item))
	}
	return out
}

func convertItem(key string, item any) any {
	switch s := item.(type) {
	case string:
		switch {
		case strings.HasSuffix(key, "DateTime") || key == "authored":
			if dt, err := ParseDateTime(s); err == nil {
				return dt
			}
		case strings.HasSuffix(key, "Date") || key == "birthDate":
			if d, err := ParseDate(s); err == nil {
				return d
			}
		case strings.HasSuffix(key, "Time"):
			if t, err := ParseTime(s); err == nil {
				return t
			}
		}
	case float64:
		if strings.HasSuffix(key, "Integer") && s == math.Trunc(s) {
			return int64(s)
		}
	case map[string]any:
		if strings.HasSuffix(key, "Quantity") {
			q := Quantity{}
			q.Value, _ = toFloat(Normalize(s["value"]).firstOrNil())
			if code, ok := s["code"].(string); ok && code != "" {
				q.Unit = code
			} else if unit, ok := s["unit"].(string); ok {
				q.Unit = unit
			}
			q.System, _ = s["system"].(string)
			return q
		}
	}
	return item
}

func (c Collection) firstOrNil() any {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

func (ev *evaluator) call(n *funcNode, input Collection, fr *frame) (Collection, error) {
	def, ok := functions[n.name]
	if !ok {
		return nil, unsupportedErr(n.at, "unsupported function '%s'", n.name)
	}
	return def.fn(ev, input, n.args, fr)
}

// arg evaluates a non-lambda argument against the current focus.
func (ev *evaluator) arg(args []node, i int, fr *frame) (Collection, error) {
	if i >= len(args) {
		return nil, nil
	}
	return ev.eval(args[i], ev.focus(fr), fr)
}

// iterate evaluates a lambda argument once per input item with $this bound to it.
func (ev *evaluator) iterate(input Collection, expr node, fr *frame, visit func(i int, item any, result Collection) (bool, error)) error {
	for i, item := range input {
		sub := &frame{this: Collection{item}, index: i}
		if fr != nil {
			sub.total = fr.total
		}
		result, err := ev.eval(expr, Collection{item}, sub)
		if err != nil {
			return err
		}
		cont, err := visit(i, item, result)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (ev *evaluator) binary(n *binaryNode, input Collection, fr *frame) (Collection, error) {
	left, err := ev.eval(n.left, input, fr)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(n.right, input, fr)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "and", "or", "xor", "implies":
		return logical(n.op, left, right)
	case "=", "!=":
		eq, ok := equalCollections(left, right)
		if !ok {
			return nil, nil
		}
		return Collection{eq == (n.op == "=")}, nil
	case "~":
		return Collection{equivalentCollections(left, right)}, nil
	case "!~":
		return Collection{!equivalentCollections(left, right)}, nil
	case "<", "<=", ">", ">=":
		return compareOp(n.op, left, right)
	case "|":
		return distinct(append(append(Collection{}, left...), right...)), nil
	case "in":
		return membership(left, right)
	case "contains":
		return membership(right, left)
	case "&":
		ls, err := concatOperand(left)
		if err != nil {
			return nil, err
		}
		rs, err := concatOperand(right)
		if err != nil {
			return nil, err
		}
		return Collection{ls + rs}, nil
	default:
		return arithmetic(n.op, left, right)
	}
}

func logical(op string, left, right Collection) (Collection, error) {
	l, lok, err := left.Bool()
	if err != nil {
		return nil, err
	}
	r, rok, err := right.Bool()
	if err != nil {
		return nil, err
	}
	switch op {
	case "and":
		switch {
		case (lok && !l) || (rok && !r):
			return Collection{false}, nil
		case lok && rok:
			return Collection{true}, nil
		}
	case "or":
		switch {
		case (lok && l) || (rok && r):
			return Collection{true}, nil
		case lok && rok:
			return Collection{false}, nil
		}
	case "xor":
		if lok && rok {
			return Collection{l != r}, nil
		}
	case "implies":
		switch {
		case lok && !l:
			return Collection{true}, nil
		case lok && l:
			if rok {
				return Collection{r}, nil
			}
		case rok && r:
			return Collection{true}, nil
		}
	}
	return nil, nil
}

func compareOp(op string, left, right Collection) (Collection, error) {
	if left.Empty() || right.Empty() {
		return nil, nil
	}
	a, err := left.Single()
	if err != nil {
		return nil, err
	}
	b, err := right.Single()
	if err != nil {
		return nil, err
	}
	cmp, ok, err := compareItems(a, b)
	if err != nil || !ok {
		return nil, err
	}
	switch op {
	case "<":
		return Collection{cmp < 0}, nil
	case "<=":
		return Collection{cmp <= 0}, nil
	case ">":
		return Collection{cmp > 0}, nil
	default:
		return Collection{cmp >= 0}, nil
	}
}

func membership(items, set Collection) (Collection, error) {
	if items.Empty() {
		return nil, nil
	}
	item, err := items.Single()
	if err != nil {
		return nil, err
	}
	return Collection{contains(set, item)}, nil
}

func concatOperand(c Collection) (string, error) {
	v, err := c.Single()
	if err != nil || v == nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeErr("'&' expects strings, got %s", typeName(v))
	}
	return s, nil
}

func negate(c Collection) (Collection, error) {
	v, err := c.Single()
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		if x == math.MinInt64 {
			return nil, nil
		}
		return Collection{-x}, nil
	case float64:
		return Collection{-x}, nil
	case Quantity:
		x.Value = -x.Value
		return Collection{x}, nil
	}
	return nil, typeErr("cannot negate %s", typeName(v))
}

func arithmetic(op string, left, right Collection) (Collection, error) {
	if left.Empty() || right.Empty() {
		return nil, nil
	}
	a, err := left.Single()
	if err != nil {
		return nil, err
	}
	b, err := right.Single()
	if err != nil {
		return nil, err
	}

	if q, ok := b.(Quantity); ok && (op == "+" || op == "-") {
		sign := 1
		if op == "-" {
			sign = -1
		}
		switch x := a.(type) {
		case Date:
			t, err := addCalendar(x.Time, q, sign)
			if err != nil {
				return nil, err
			}
			return Collection{Date{Time: t, Precision: x.Precision}}, nil
		case DateTime:
			t, err := addCalendar(x.Time, q, sign)
			if err != nil {
				return nil, err
			}
			return Collection{DateTime{Time: t, Precision: x.Precision, Zoned: x.Zoned}}, nil
		case Quantity:
			if x.Unit != q.Unit {
				return nil, typeErr("incompatible units '%s' and '%s'", x.Unit, q.Unit)
			}
			x.Value += float64(sign) * q.Value
			return Collection{x}, nil
		}
	}

	if sa, ok := a.(string); ok && op == "+" {
		sb, ok := b.(string)
		if !ok {
			return nil, typeErr("cannot add %s to String", typeName(b))
		}
		return Collection{sa + sb}, nil
	}

	if qa, ok := a.(Quantity); ok && isNumber(b) && (op == "*" || op == "/") {
		f, _ := toFloat(b)
		if op == "*" {
			qa.Value *= f
		} else {
			if f == 0 {
				return nil, nil
			}
			qa.Value /= f
		}
		return Collection{qa}, nil
	}

	if !isNumber(a) || !isNumber(b) {
		return nil, typeErr("operator '%s' not defined for %s and %s", op, typeName(a), typeName(b))
	}
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	fa, _ := toFloat(a)
	fb, _ := toFloat(b)

	switch op {
	case "+":
		if aInt && bInt {
			return integer(addInt(ia, ib))
		}
		return Collection{fa + fb}, nil
	case "-":
		if aInt && bInt {
			return integer(subInt(ia, ib))
		}
		return Collection{fa - fb}, nil
	case "*":
		if aInt && bInt {
			return integer(mulInt(ia, ib))
		}
		return Collection{fa * fb}, nil
	case "/":
		if fb == 0 {
			return nil, nil
		}
		return Collection{fa / fb}, nil
	case "div":
		if fb == 0 {
			return nil, nil
		}
		if aInt && bInt {
			if ia == math.MinInt64 && ib == -1 {
				return nil, nil
			}
			return Collection{ia / ib}, nil
		}
		return integer(truncInt(fa / fb))
	case "mod":
		if fb == 0 {
			return nil, nil
		}
		if aInt && bInt {
			return Collection{ia % ib}, nil
		}
		return Collection{math.Mod(fa, fb)}, nil
	}
	return nil, unsupportedErr(-1, "unsupported operator '%s'", op)
}

// integer wraps an int64 result; an overflowed result is empty.
func integer(n int64, ok bool) (Collection, error) {
	if !ok {
		return nil, nil
	}
	return Collection{n}, nil
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	return c, (c < a) == (b > 0)
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || c/b != a {
		return 0, false
	}
	return c, true
}

// truncInt converts f to an int64, failing outside the representable range.
func truncInt(f float64) (int64, bool) {
	f = math.Trunc(f)
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
