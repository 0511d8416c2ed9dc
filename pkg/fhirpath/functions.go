package fhirpath

import (
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type funcImpl func(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error)

type funcDef struct {
	minArgs, maxArgs int
	fn               funcImpl
}

// functions is the whitelist. Anything else is reported as unsupported.
var functions map[string]funcDef

func init() {
	functions = map[string]funcDef{
		// existence
		"empty":      {0, 0, fnEmpty},
		"exists":     {0, 1, fnExists},
		"all":        {1, 1, fnAll},
		"allTrue":    {0, 0, boolAggregate(true, true)},
		"anyTrue":    {0, 0, boolAggregate(false, true)},
		"allFalse":   {0, 0, boolAggregate(true, false)},
		"anyFalse":   {0, 0, boolAggregate(false, false)},
		"count":      {0, 0, fnCount},
		"distinct":   {0, 0, fnDistinct},
		"isDistinct": {0, 0, fnIsDistinct},
		"hasValue":   {0, 0, fnHasValue},
		"not":        {0, 0, fnNot},

		// filtering and projection
		"where":    {1, 1, fnWhere},
		"select":   {1, 1, fnSelect},
		"repeat":   {1, 1, fnRepeat},
		"children": {0, 0, fnChildren},
		"iif":      {2, 3, fnIif},

		// subsetting
		"first":  {0, 0, fnFirst},
		"last":   {0, 0, fnLast},
		"tail":   {0, 0, fnTail},
		"skip":   {1, 1, fnSkip},
		"take":   {1, 1, fnTake},
		"single": {0, 0, fnSingle},

		// combining
		"union":   {1, 1, fnUnion},
		"combine": {1, 1, fnCombine},

		// aggregates and math
		"sum":     {0, 0, fnSum},
		"min":     {0, 0, extremum(-1)},
		"max":     {0, 0, extremum(1)},
		"avg":     {0, 0, fnAvg},
		"abs":     {0, 0, fnAbs},
		"ceiling": {0, 0, mathIntFn(math.Ceil)},
		"floor":   {0, 0, mathIntFn(math.Floor)},
		"round":   {0, 1, fnRound},

		// strings
		"length":     {0, 0, fnLength},
		"upper":      {0, 0, stringFn(strings.ToUpper)},
		"lower":      {0, 0, stringFn(strings.ToLower)},
		"trim":       {0, 0, stringFn(strings.TrimSpace)},
		"contains":   {1, 1, stringPredicate(strings.Contains)},
		"startsWith": {1, 1, stringPredicate(strings.HasPrefix)},
		"endsWith":   {1, 1, stringPredicate(strings.HasSuffix)},
		"indexOf":    {1, 1, fnIndexOf},
		"substring":  {1, 2, fnSubstring},
		"replace":    {2, 2, fnReplace},
		"matches":    {1, 1, fnMatches},
		"join":       {0, 1, fnJoin},

		// conversion
		"toString":  {0, 0, fnToString},
		"toInteger": {0, 0, fnToInteger},
		"toDecimal": {0, 0, fnToDecimal},

		// FHIR and utility
		"extension": {1, 1, fnExtension},
		"today":     {0, 0, fnToday},
		"now":       {0, 0, fnNow},
		"trace":     {1, 2, fnTrace},
	}
}

func fnEmpty(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	return Collection{len(input) == 0}, nil
}

func fnExists(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	if len(args) == 0 {
		return Collection{len(input) > 0}, nil
	}
	filtered, err := fnWhere(ev, input, args, fr)
	if err != nil {
		return nil, err
	}
	return Collection{len(filtered) > 0}, nil
}

func fnAll(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	result := true
	err := ev.iterate(input, args[0], fr, func(_ int, _ any, c Collection) (bool, error) {
		b, ok, err := c.Bool()
		if err != nil {
			return false, err
		}
		if !ok || !b {
			result = false
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return Collection{result}, nil
}

// boolAggregate builds allTrue/anyTrue/allFalse/anyFalse.
func boolAggregate(every, want bool) funcImpl {
	return func(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
		for _, item := range input {
			b, ok := item.(bool)
			if !ok {
				return nil, typeErr("expected booleans, got %s", typeName(item))
			}
			if every && b != want {
				return Collection{false}, nil
			}
			if !every && b == want {
				return Collection{true}, nil
			}
		}
		return Collection{every}, nil
	}
}

func fnCount(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	return Collection{int64(len(input))}, nil
}

func fnDistinct(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	return distinct(input), nil
}

func fnIsDistinct(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	return Collection{len(distinct(input)) == len(input)}, nil
}

func fnHasValue(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	if len(input) != 1 {
		return Collection{false}, nil
	}
	_, complex := input[0].(map[string]any)
	return Collection{!complex}, nil
}

func fnNot(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	b, ok, err := input.Bool()
	if err != nil || !ok {
		return nil, err
	}
	return Collection{!b}, nil
}

func fnWhere(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	var out Collection
	err := ev.iterate(input, args[0], fr, func(_ int, item any, c Collection) (bool, error) {
		b, ok, err := c.Bool()
		if err != nil {
			return false, err
		}
		if ok && b {
			out = append(out, item)
		}
		return true, nil
	})
	return out, err
}

func fnSelect(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	var out Collection
	err := ev.iterate(input, args[0], fr, func(_ int, _ any, c Collection) (bool, error) {
		out = append(out, c...)
		return true, nil
	})
	return out, err
}

func fnRepeat(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	var out Collection
	queue := input
	for len(queue) > 0 {
		var next Collection
		err := ev.iterate(queue, args[0], fr, func(_ int, _ any, c Collection) (bool, error) {
			for _, item := range c {
				if !seen(out, item) {
					out = append(out, item)
					next = append(next, item)
				}
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
		queue = next
	}
	return out, nil
}

// seen reports membership by identity for elements and by equality for primitives.
func seen(c Collection, item any) bool {
	m, isMap := item.(map[string]any)
	if !isMap {
		return contains(c, item)
	}
	ptr := reflect.ValueOf(m).Pointer()
	for _, x := range c {
		if xm, ok := x.(map[string]any); ok && reflect.ValueOf(xm).Pointer() == ptr {
			return true
		}
	}
	return false
}

func fnChildren(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	var out Collection
	for _, item := range input {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range sortedKeys(m) {
			if k == "resourceType" {
				continue
			}
			out = append(out, convertField(k, m[k])...)
		}
	}
	return out, nil
}

func fnIif(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	if len(input) > 1 {
		return nil, typeErr("iif() requires a single input item")
	}
	cond, err := ev.eval(args[0], ev.focus(fr), fr)
	if err != nil {
		return nil, err
	}
	b, ok, err := cond.Bool()
	if err != nil {
		return nil, err
	}
	if ok && b {
		return ev.arg(args, 1, fr)
	}
	return ev.arg(args, 2, fr)
}

func fnFirst(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	if len(input) == 0 {
		return nil, nil
	}
	return input[:1], nil
}

func fnLast(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	if len(input) == 0 {
		return nil, nil
	}
	return input[len(input)-1:], nil
}

func fnTail(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	if len(input) <= 1 {
		return nil, nil
	}
	return input[1:], nil
}

func intArg(ev *evaluator, args []node, i int, fr *frame) (int, bool, error) {
	c, err := ev.arg(args, i, fr)
	if err != nil {
		return 0, false, err
	}
	v, err := c.Single()
	if err != nil || v == nil {
		return 0, false, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, false, typeErr("expected an integer argument, got %s", typeName(v))
	}
	return int(n), true, nil
}

func fnSkip(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	n, ok, err := intArg(ev, args, 0, fr)
	if err != nil || !ok {
		return nil, err
	}
	if n <= 0 {
		return input, nil
	}
	if n >= len(input) {
		return nil, nil
	}
	return input[n:], nil
}

func fnTake(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	n, ok, err := intArg(ev, args, 0, fr)
	if err != nil || !ok || n <= 0 {
		return nil, err
	}
	if n >= len(input) {
		return input, nil
	}
	return input[:n], nil
}

func fnSingle(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	v, err := input.Single()
	if err != nil || v == nil {
		return nil, err
	}
	return Collection{v}, nil
}

func fnUnion(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	other, err := ev.arg(args, 0, fr)
	if err != nil {
		return nil, err
	}
	return distinct(append(append(Collection{}, input...), other...)), nil
}

func fnCombine(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	other, err := ev.arg(args, 0, fr)
	if err != nil {
		return nil, err
	}
	return append(append(Collection{}, input...), other...), nil
}

func fnSum(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	if len(input) == 0 {
		return Collection{int64(0)}, nil
	}
	acc := Collection{input[0]}
	for _, item := range input[1:] {
		next, err := arithmetic("+", acc, Collection{item})
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func extremum(sign int) funcImpl {
	return func(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
		if len(input) == 0 {
			return nil, nil
		}
		best := input[0]
		for _, item := range input[1:] {
			cmp, ok, err := compareItems(item, best)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			if cmp*sign > 0 {
				best = item
			}
		}
		return Collection{best}, nil
	}
}

func fnAvg(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	if len(input) == 0 {
		return nil, nil
	}
	total := 0.0
	for _, item := range input {
		f, ok := toFloat(item)
		if !ok || !isNumber(item) {
			return nil, typeErr("avg() expects numbers, got %s", typeName(item))
		}
		total += f
	}
	return Collection{total / float64(len(input))}, nil
}

func singleNumber(input Collection) (any, error) {
	v, err := input.Single()
	if err != nil || v == nil {
		return nil, err
	}
	if !isNumber(v) && !isQuantity(v) {
		return nil, typeErr("expected a number, got %s", typeName(v))
	}
	return v, nil
}

func isQuantity(v any) bool {
	_, ok := v.(Quantity)
	return ok
}

func fnAbs(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	v, err := singleNumber(input)
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		if x == math.MinInt64 {
			return nil, nil
		}
		if x < 0 {
			x = -x
		}
		return Collection{x}, nil
	case Quantity:
		x.Value = math.Abs(x.Value)
		return Collection{x}, nil
	default:
		return Collection{math.Abs(x.(float64))}, nil
	}
}

func mathIntFn(f func(float64) float64) funcImpl {
	return func(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
		v, err := singleNumber(input)
		if err != nil || v == nil {
			return nil, err
		}
		if n, ok := v.(int64); ok {
			return Collection{n}, nil
		}
		n, _ := toFloat(v)
		return integer(truncInt(f(n)))
	}
}

// maxRoundPrecision is the most decimal places a float64 can distinguish.
const maxRoundPrecision = 15

func fnRound(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	v, err := singleNumber(input)
	if err != nil || v == nil {
		return nil, err
	}
	precision := 0
	if len(args) > 0 {
		p, ok, err := intArg(ev, args, 0, fr)
		if err != nil {
			return nil, err
		}
		if ok {
			precision = p
		}
	}
	if precision < 0 {
		return nil, typeErr("round() precision must be non-negative, got %d", precision)
	}
	n, _ := toFloat(v)
	if precision > maxRoundPrecision {
		return Collection{n}, nil
	}
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(n*scale) / scale
	if math.IsInf(rounded, 0) || math.IsNaN(rounded) {
		return Collection{n}, nil
	}
	return Collection{rounded}, nil
}

func singleString(input Collection) (string, bool, error) {
	v, err := input.Single()
	if err != nil || v == nil {
		return "", false, err
	}
	s, ok := v.(string)
	if !ok {
		return "", false, typeErr("expected a string, got %s", typeName(v))
	}
	return s, true, nil
}

func stringArg(ev *evaluator, args []node, i int, fr *frame) (string, bool, error) {
	c, err := ev.arg(args, i, fr)
	if err != nil {
		return "", false, err
	}
	return singleString(c)
}

func fnLength(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	s, ok, err := singleString(input)
	if err != nil || !ok {
		return nil, err
	}
	return Collection{int64(len([]rune(s)))}, nil
}

func stringFn(f func(string) string) funcImpl {
	return func(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
		s, ok, err := singleString(input)
		if err != nil || !ok {
			return nil, err
		}
		return Collection{f(s)}, nil
	}
}

func stringPredicate(f func(s, sub string) bool) funcImpl {
	return func(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
		s, ok, err := singleString(input)
		if err != nil || !ok {
			return nil, err
		}
		sub, ok, err := stringArg(ev, args, 0, fr)
		if err != nil || !ok {
			return nil, err
		}
		return Collection{f(s, sub)}, nil
	}
}

func fnIndexOf(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	s, ok, err := singleString(input)
	if err != nil || !ok {
		return nil, err
	}
	sub, ok, err := stringArg(ev, args, 0, fr)
	if err != nil || !ok {
		return nil, err
	}
	return Collection{int64(strings.Index(s, sub))}, nil
}

func fnSubstring(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	s, ok, err := singleString(input)
	if err != nil || !ok {
		return nil, err
	}
	runes := []rune(s)
	start, ok, err := intArg(ev, args, 0, fr)
	if err != nil || !ok || start < 0 || start >= len(runes) {
		return nil, err
	}
	end := len(runes)
	if len(args) > 1 {
		n, ok, err := intArg(ev, args, 1, fr)
		if err != nil {
			return nil, err
		}
		if ok {
			end = min(start+max(n, 0), len(runes))
		}
	}
	return Collection{string(runes[start:end])}, nil
}

func fnReplace(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	s, ok, err := singleString(input)
	if err != nil || !ok {
		return nil, err
	}
	pattern, ok, err := stringArg(ev, args, 0, fr)
	if err != nil || !ok {
		return nil, err
	}
	repl, ok, err := stringArg(ev, args, 1, fr)
	if err != nil || !ok {
		return nil, err
	}
	return Collection{strings.ReplaceAll(s, pattern, repl)}, nil
}

func fnMatches(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	s, ok, err := singleString(input)
	if err != nil || !ok {
		return nil, err
	}
	pattern, ok, err := stringArg(ev, args, 0, fr)
	if err != nil || !ok {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, typeErr("invalid regular expression: %v", err)
	}
	return Collection{re.MatchString(s)}, nil
}

func fnJoin(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	sep := ""
	if len(args) > 0 {
		s, ok, err := stringArg(ev, args, 0, fr)
		if err != nil {
			return nil, err
		}
		if ok {
			sep = s
		}
	}
	parts := make([]string, 0, len(input))
	for _, item := range input {
		s, ok := item.(string)
		if !ok {
			return nil, typeErr("join() expects strings, got %s", typeName(item))
		}
		parts = append(parts, s)
	}
	return Collection{strings.Join(parts, sep)}, nil
}

// ToString renders a primitive item the way toString() does.
func ToString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case Date:
		return x.String(), true
	case DateTime:
		return x.String(), true
	case Time:
		return x.String(), true
	case Quantity:
		return strconv.FormatFloat(x.Value, 'f', -1, 64) + " '" + x.Unit + "'", true
	}
	return "", false
}

func fnToString(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	v, err := input.Single()
	if err != nil || v == nil {
		return nil, err
	}
	s, ok := ToString(v)
	if !ok {
		return nil, nil
	}
	return Collection{s}, nil
}

func fnToInteger(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	v, err := input.Single()
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		return Collection{x}, nil
	case bool:
		if x {
			return Collection{int64(1)}, nil
		}
		return Collection{int64(0)}, nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return Collection{n}, nil
		}
	}
	return nil, nil
}

func fnToDecimal(_ *evaluator, input Collection, _ []node, _ *frame) (Collection, error) {
	v, err := input.Single()
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		return Collection{float64(x)}, nil
	case float64:
		return Collection{x}, nil
	case bool:
		if x {
			return Collection{1.0}, nil
		}
		return Collection{0.0}, nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return Collection{f}, nil
		}
	}
	return nil, nil
}

func fnExtension(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	url, ok, err := stringArg(ev, args, 0, fr)
	if err != nil || !ok {
		return nil, err
	}
	var out Collection
	for _, ext := range ev.member(input, "extension") {
		m, isMap := ext.(map[string]any)
		if isMap && m["url"] == url {
			out = append(out, m)
		}
	}
	return out, nil
}

func fnToday(ev *evaluator, _ Collection, _ []node, _ *frame) (Collection, error) {
	now := ev.now
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Collection{Date{Time: d, Precision: PrecisionDay}}, nil
}

func fnNow(ev *evaluator, _ Collection, _ []node, _ *frame) (Collection, error) {
	return Collection{DateTime{Time: ev.now, Precision: PrecisionMillisecond, Zoned: true}}, nil
}

func fnTrace(ev *evaluator, input Collection, args []node, fr *frame) (Collection, error) {
	name, _, err := stringArg(ev, args, 0, fr)
	if err != nil {
		return nil, err
	}
	if ev.trace != nil {
		logged := input
		if len(args) > 1 {
			if logged, err = fnSelect(ev, input, args[1:], fr); err != nil {
				return nil, err
			}
		}
		ev.trace(name, logged)
	}
	return input, nil
}
