package api

import (
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/safar/shopcraft/internal/models"
	"github.com/shopspring/decimal"
)

var validatorsOnce sync.Once

// registerValidators makes request structs strict: unknown JSON fields are
// rejected, decimals can carry numeric tags such as gt=0, and statuses are
// checked against the model enums.
func registerValidators() {
	validatorsOnce.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true

		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
			return models.OrderStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("product_status", func(fl validator.FieldLevel) bool {
			return models.ProductStatus(fl.Field().String()).Valid()
		})
	})
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
