package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// enumValue - закрытые перечисления из entities умеют проверять себя сами.
type enumValue interface {
	Valid() bool
}

// registerRules регистрирует теги, которые мы используем в struct tags
func registerRules(v *validator.Validate) error {
	if err := v.RegisterValidation("enum", isValidEnum); err != nil {
		return err
	}
	if err := v.RegisterValidation("decimal_positive", isPositiveDecimal); err != nil {
		return err
	}
	if err := v.RegisterValidation("decimal_nonnegative", isNonNegativeDecimal); err != nil {
		return err
	}
	if err := v.RegisterValidation("not_blank", isNotBlank); err != nil {
		return err
	}
	return nil
}

// isValidEnum - поле должно быть допустимым значением перечисления.
func isValidEnum(fl validator.FieldLevel) bool {
	if e, ok := fl.Field().Interface().(enumValue); ok {
		return e.Valid()
	}
	if fl.Field().CanAddr() {
		if e, ok := fl.Field().Addr().Interface().(enumValue); ok {
			return e.Valid()
		}
	}
	return false
}

func decimalOf(fl validator.FieldLevel) (decimal.Decimal, bool) {
	// decimal.Decimal приходит сюда строкой, см. registerDecimalTypes.
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// isPositiveDecimal - сумма строго больше нуля (платежи, цены строк).
func isPositiveDecimal(fl validator.FieldLevel) bool {
	d, ok := decimalOf(fl)
	return ok && d.IsPositive()
}

func isNonNegativeDecimal(fl validator.FieldLevel) bool {
	d, ok := decimalOf(fl)
	return ok && !d.IsNegative()
}

func isNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
