package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// newValidator builds the request validator with the decimal comparison tags
// the DTOs use: decimal_gt=N and decimal_gte=N.
func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("decimal_gt", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return d.GreaterThan(bound)
	})

	_ = v.RegisterValidation("decimal_gte", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return d.GreaterThanOrEqual(bound)
	})

	return v
}
