package api

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/victornm/umoja/internal/errors"
)

var registerOnce sync.Once

// registerValidations adds the custom tags and reports JSON field names in validation errors.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
}

func bindJSON(c *gin.Context, req any) error {
	registerValidations()

	if err := c.ShouldBindJSON(req); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) {
		return errors.New(errors.KindValidation, errors.WithMessagef("Invalid request body"), errors.WithCause(err))
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "notblank":
			msgs = append(msgs, fmt.Sprintf("%s cannot be empty", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}

	return errors.New(errors.KindValidation, errors.WithMessagef("%s", strings.Join(msgs, ", ")), errors.WithCause(err))
}
