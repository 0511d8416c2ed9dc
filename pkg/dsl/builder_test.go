package dsl_test

import (
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/dsl"
)

func TestBuilder_Basic(t *testing.T) {
	b := dsl.New("intake").URL("http://example.org/q/intake", "2").Title("Intake")

	b.Add("smoker", domain.TypeBoolean).Text("Do you smoke?").Required()
	b.Add("packs", domain.TypeInteger).
		EnableWhen("smoker", domain.OpEqual, domain.Bool(true)).
		MinValue(domain.Integer(0)).
		MaxValue(domain.Integer(10))

	q := b.Build()

	if q.Reference() != "http://example.org/q/intake|2" {
		t.Errorf("unexpected reference %q", q.Reference())
	}
	if len(q.Item) != 2 {
		t.Fatalf("expected 2 items, got %d", len(q.Item))
	}
	if !q.Item[0].Required || q.Item[0].Text != "Do you smoke?" {
		t.Errorf("smoker item not configured: %+v", q.Item[0])
	}

	packs := q.Item[1]
	if len(packs.EnableWhen) != 1 {
		t.Fatalf("expected 1 enableWhen, got %d", len(packs.EnableWhen))
	}
	ew := packs.EnableWhen[0]
	if ew.Question != "smoker" || ew.AnswerBoolean == nil || !*ew.AnswerBoolean {
		t.Errorf("unexpected enableWhen %+v", ew)
	}
	lo, ok := packs.FindExtension(domain.ExtMinValue)
	if !ok || lo.ValueInteger == nil || *lo.ValueInteger != 0 {
		t.Errorf("minValue extension missing")
	}
}

func TestBuilder_Nested(t *testing.T) {
	b := dsl.New("nested")
	g := b.Add("household", domain.TypeGroup).Repeats().MinOccurs(1).MaxOccurs(3)
	g.Add("name", domain.TypeString)
	g.Add("age", domain.TypeInteger).Variable("adult", "%context.answer.value >= 18")

	q := b.Build()

	household := q.Item[0]
	if len(household.Item) != 2 {
		t.Fatalf("expected 2 children, got %d", len(household.Item))
	}
	if household.Item[1].LinkID != "age" {
		t.Errorf("children out of order: %s", household.Item[1].LinkID)
	}
	vars := household.Item[1].Extensions(domain.ExtVariable)
	if len(vars) != 1 || vars[0].ValueExpression.Name != "adult" {
		t.Errorf("variable not declared: %+v", vars)
	}
}

func TestBuilder_DynamicBounds(t *testing.T) {
	b := dsl.New("bounds")
	b.Add("dose", domain.TypeDecimal).
		MinValue(domain.Decimal(1)).
		MinValueExpression("%floor")

	q := b.Build()
	exts := q.Item[0].Extensions(domain.ExtMinValue)
	if len(exts) != 1 {
		t.Fatalf("static and dynamic bound should share one extension, got %d", len(exts))
	}
	expr := exts[0].DynamicExpression()
	if expr == nil || expr.Expression != "%floor" {
		t.Errorf("dynamic expression not attached: %+v", expr)
	}
	if exts[0].ValueDecimal == nil || *exts[0].ValueDecimal != 1 {
		t.Errorf("static bound lost")
	}
}

func TestBuilder_BuildIsolation(t *testing.T) {
	b := dsl.New("iso")
	item := b.Add("a", domain.TypeString)
	first := b.Build()
	item.MimeTypes("image/png")
	second := b.Build()

	if len(first.Item[0].Extension) != 0 {
		t.Errorf("earlier build mutated by later builder calls")
	}
	if len(second.Item[0].Extensions(domain.ExtMimeType)) != 1 {
		t.Errorf("expected mime type extension on second build")
	}
}

func TestBuilder_Loader(t *testing.T) {
	b := dsl.New("loaded").URL("http://example.org/q/loaded")
	b.Add("a", domain.TypeString)

	loader, err := b.Loader()
	if err != nil {
		t.Fatalf("Loader failed: %v", err)
	}
	ids, err := loader.List(t.Context())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("expected 1 questionnaire, got %v", ids)
	}
}
