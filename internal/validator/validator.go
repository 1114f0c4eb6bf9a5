// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"aktieskat/internal/costbasis"
	"aktieskat/internal/models"
)

var once sync.Once

// Register registers all custom validators with the Gin binding engine.
func Register() {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			registerOn(v)
		}
	})
}

func registerOn(v *validator.Validate) {
	// decimal.Decimal is validated as its float value so the builtin
	// gt/gte/lt tags apply to amounts and quantities.
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	_ = v.RegisterValidation("iso4217", validateCurrency)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
	_ = v.RegisterValidation("lot_source", validateLotSource)
	_ = v.RegisterValidation("cost_basis_method", validateCostBasisMethod)
	_ = v.RegisterValidation("date_ymd", validateDate)
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// validateCurrency accepts the currencies amounts may be recorded in.
func validateCurrency(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "USD", "DKK":
		return true
	}
	return false
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return models.TransactionType(fl.Field().String()).Valid()
}

func validateLotSource(fl validator.FieldLevel) bool {
	return models.LotSource(fl.Field().String()).Valid()
}

func validateCostBasisMethod(fl validator.FieldLevel) bool {
	_, err := costbasis.ParseMethod(fl.Field().String())
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(time.DateOnly, fl.Field().String())
	return err == nil
}
