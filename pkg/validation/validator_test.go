package validation

import (
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type color string

func (c color) Valid() bool { return c == "RED" || c == "GREEN" }

type sample struct {
	Color    color               `validate:"required,enum"`
	Amount   decimal.Decimal     `validate:"decimal_positive"`
	Discount decimal.NullDecimal `validate:"omitempty,decimal_nonnegative"`
	Name     string              `validate:"not_blank"`
	Notes    null.String         `validate:"omitempty,max=5"`
}

func validSample() sample {
	return sample{
		Color:  "RED",
		Amount: decimal.RequireFromString("10.50"),
		Name:   "Пульт",
	}
}

func TestValidator_AcceptsValidStruct(t *testing.T) {
	assert.NoError(t, New().Validate(validSample()))
}

func TestValidator_Enum(t *testing.T) {
	s := validSample()
	s.Color = "BLUE"
	assert.Error(t, New().Validate(s))
}

func TestValidator_Decimals(t *testing.T) {
	v := New()

	s := validSample()
	s.Amount = decimal.Zero
	assert.Error(t, v.Validate(s), "ноль не является положительной суммой")

	s = validSample()
	s.Discount = decimal.NewNullDecimal(decimal.NewFromInt(-1))
	assert.Error(t, v.Validate(s))

	s = validSample()
	s.Discount = decimal.NewNullDecimal(decimal.Zero)
	assert.NoError(t, v.Validate(s))
}

func TestValidator_NullTypes(t *testing.T) {
	v := New()

	s := validSample()
	s.Notes = null.StringFrom("слишком длинно")
	assert.Error(t, v.Validate(s))

	s.Notes = null.String{}
	assert.NoError(t, v.Validate(s))
}

func TestValidator_NotBlank(t *testing.T) {
	s := validSample()
	s.Name = "   "
	assert.Error(t, New().Validate(s))
}

func TestValidator_ReportsJSONFieldNames(t *testing.T) {
	type payload struct {
		CategoryID uint64 `json:"category_id,omitempty" validate:"required"`
		Comment    string `validate:"required"`
	}

	err := New().Validate(payload{})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 2)
	assert.Equal(t, "category_id", verrs[0].Field())
	assert.Equal(t, "Comment", verrs[1].Field())
}
