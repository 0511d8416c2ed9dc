package form_test

import (
	"encoding/base64"
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/dsl"
	"github.com/aretw0/formtree/pkg/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ucum = "http://unitsofmeasure.org"

func ptr[T any](v T) *T { return &v }

func singleQuestion(t *testing.T, configure func(*dsl.Builder) *dsl.ItemBuilder) (*form.Form, *form.Question) {
	t.Helper()
	b := dsl.New("validate")
	item := configure(b)
	f := form.New(b.Build())
	t.Cleanup(f.Dispose)
	q, err := f.Question(item.Build().LinkID)
	require.NoError(t, err)
	return f, q
}

func codes(issues domain.IssueList) []domain.IssueCode {
	var out []domain.IssueCode
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidate_DeferredUntilTouched(t *testing.T) {
	f, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("name", domain.TypeString).Required()
	})

	assert.Empty(t, f.Issues(), "nothing is reported before submission or edits")

	require.NoError(t, q.SetAnswer(0, "Ada"))
	require.NoError(t, q.Answer(0).Clear())
	assert.True(t, q.Dirty())
	assert.Equal(t, []domain.IssueCode{domain.IssueRequired}, codes(q.Issues()))
	assert.True(t, q.HasErrors())
}

func TestValidate_RequiredWording(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("tags", domain.TypeString).Repeats().MinOccurs(2)
	})
	require.NoError(t, q.SetAnswer(0, "one"))

	issues := q.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "At least 2 answers are required.", issues[0].Message)
	assert.Equal(t, domain.NoAnswer, issues[0].AnswerIndex)
}

func TestValidate_RequiredGroup(t *testing.T) {
	b := dsl.New("group")
	g := b.Add("contact", domain.TypeGroup).Required()
	g.Add("phone", domain.TypeString)
	g.Add("email", domain.TypeString)
	f := form.New(b.Build())
	defer f.Dispose()

	assert.False(t, f.ValidateAll())
	issues := f.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "At least one item in this group must be answered.", issues[0].Message)

	require.NoError(t, f.SetAnswer("email", "a@example.org"))
	assert.True(t, f.ValidateAll())
}

func TestValidate_Attachment(t *testing.T) {
	tests := []struct {
		name       string
		attachment domain.Attachment
		want       []domain.IssueCode
	}{
		{"disallowed type", domain.Attachment{ContentType: "image/gif", Size: ptr(int64(100))}, []domain.IssueCode{domain.IssueNotSupported}},
		{"too large", domain.Attachment{ContentType: "image/png", Size: ptr(int64(1024))}, []domain.IssueCode{domain.IssueTooLong}},
		{"within limits", domain.Attachment{ContentType: "image/jpeg", Size: ptr(int64(256))}, nil},
		{"inline data too large", domain.Attachment{
			ContentType: "image/png",
			Data:        base64.StdEncoding.EncodeToString(make([]byte, 1024)),
		}, []domain.IssueCode{domain.IssueTooLong}},
		{"inline data within limits", domain.Attachment{
			ContentType: "image/jpeg",
			Data:        base64.StdEncoding.EncodeToString(make([]byte, 256)),
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
				return b.Add("photo", domain.TypeAttachment).MimeTypes("image/png", "image/jpeg").MaxSize(512)
			})
			require.NoError(t, q.SetAnswer(0, tt.attachment))
			assert.Equal(t, tt.want, codes(q.Issues()))
		})
	}
}

func TestValidate_QuantityUnits(t *testing.T) {
	kg := func(v float64) domain.Quantity {
		return domain.Quantity{Value: ptr(v), Unit: "kg", System: ucum, Code: "kg"}
	}
	tests := []struct {
		name   string
		answer domain.Quantity
		want   int
	}{
		{"within bounds", kg(70), 0},
		{"above maximum", kg(500), 1},
		{"below minimum", kg(0.5), 1},
		{"incompatible unit fails both bounds", domain.Quantity{Value: ptr(70.0), Unit: "lb", System: ucum, Code: "[lb_av]"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
				return b.Add("weight", domain.TypeQuantity).MinQuantity(kg(1)).MaxQuantity(kg(200))
			})
			require.NoError(t, q.SetAnswer(0, tt.answer))
			issues := q.Issues()
			assert.Len(t, issues, tt.want)
			for _, i := range issues {
				assert.Equal(t, domain.IssueValue, i.Code)
				assert.Equal(t, 0, i.AnswerIndex)
			}
		})
	}
}

func TestValidate_QuantityBoundOverridesGeneric(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("weight", domain.TypeQuantity).
			MinValue(domain.Decimal(100)).
			MinQuantity(domain.Quantity{Value: ptr(1.0), System: ucum, Code: "kg"})
	})
	require.NoError(t, q.SetAnswer(0, domain.Quantity{Value: ptr(50.0), System: ucum, Code: "kg"}))
	assert.Empty(t, q.Issues())
}

func TestValidate_BoundPrecedence(t *testing.T) {
	build := func(t *testing.T) (*form.Form, *form.Question) {
		b := dsl.New("precedence").Variable("floor", "2")
		item := b.Add("dose", domain.TypeInteger).
			MinValue(domain.Integer(10)).
			MinValueExpression("%floor")
		f := form.New(b.Build())
		t.Cleanup(f.Dispose)
		q, err := f.Question(item.Build().LinkID)
		require.NoError(t, err)
		return f, q
	}

	_, q := build(t)
	require.NoError(t, q.SetAnswer(0, 5))
	assert.Empty(t, q.Issues(), "the expression bound replaces the static one")

	require.NoError(t, q.SetAnswer(0, 1))
	issues := q.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "Value must be at least 2.", issues[0].Message)
}

func TestValidate_ContradictoryBoundsIgnored(t *testing.T) {
	for _, answer := range []int{1, 7, 100} {
		_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
			return b.Add("n", domain.TypeInteger).MinValue(domain.Integer(10)).MaxValue(domain.Integer(5))
		})
		require.NoError(t, q.SetAnswer(0, answer))
		assert.Empty(t, q.Issues(), "answer %d", answer)
	}

	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("s", domain.TypeString).MinLength(10).MaxLength(2)
	})
	require.NoError(t, q.SetAnswer(0, "hello"))
	assert.Empty(t, q.Issues())
}

func TestValidate_Range(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("n", domain.TypeInteger).MinValue(domain.Integer(1)).MaxValue(domain.Integer(10))
	})

	for _, tc := range []struct {
		answer int
		want   int
	}{{1, 0}, {10, 0}, {0, 1}, {11, 1}} {
		require.NoError(t, q.SetAnswer(0, tc.answer))
		assert.Len(t, q.Issues(), tc.want, "answer %d", tc.answer)
	}
}

func TestValidate_DateRange(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("visit", domain.TypeDate).MinValue(domain.Value{ValueDate: "2024-01-01"})
	})

	require.NoError(t, q.SetAnswer(0, "2023-12-31"))
	assert.Equal(t, []domain.IssueCode{domain.IssueValue}, codes(q.Issues()))

	require.NoError(t, q.SetAnswer(0, "2024-01-01"))
	assert.Empty(t, q.Issues())

	require.NoError(t, q.SetAnswer(0, "2024-13-45"))
	assert.Equal(t, []domain.IssueCode{domain.IssueInvalid}, codes(q.Issues()))
}

func TestValidate_Length(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("code", domain.TypeString).MinLength(2).MaxLength(4)
	})

	require.NoError(t, q.SetAnswer(0, "a"))
	assert.Equal(t, []domain.IssueCode{domain.IssueValue}, codes(q.Issues()))
	require.NoError(t, q.SetAnswer(0, "abcde"))
	assert.Equal(t, []domain.IssueCode{domain.IssueTooLong}, codes(q.Issues()))
	require.NoError(t, q.SetAnswer(0, "abc"))
	assert.Empty(t, q.Issues())
}

func TestValidate_DecimalPlaces(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("temp", domain.TypeDecimal).MaxDecimalPlaces(1)
	})

	require.NoError(t, q.SetAnswer(0, 36.6))
	assert.Empty(t, q.Issues())
	require.NoError(t, q.SetAnswer(0, 36.65))
	issues := q.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "At most 1 decimal place is allowed.", issues[0].Message)
}

func TestValidate_URLFormat(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("site", domain.TypeURL)
	})

	require.NoError(t, q.SetAnswer(0, "not a url"))
	assert.Equal(t, []domain.IssueCode{domain.IssueInvalid}, codes(q.Issues()))
	require.NoError(t, q.SetAnswer(0, "https://example.org/page"))
	assert.Empty(t, q.Issues())
}

func TestValidate_UnsupportedType(t *testing.T) {
	_, q := singleQuestion(t, func(b *dsl.Builder) *dsl.ItemBuilder {
		return b.Add("legacy", domain.ItemType("question"))
	})
	assert.Equal(t, []domain.IssueCode{domain.IssueNotSupported}, codes(q.Issues()))
	assert.ErrorIs(t, q.SetAnswer(0, "x"), form.ErrUnsupportedType)
}
