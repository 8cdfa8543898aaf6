/*
 * Font catalog API v1
 *
 * Ingestion and management of font products
 *
 * API version: 1.0.0
 */

package catalog

import (
	"errors"
	"reflect"
	"strings"

	"github.com/fontmarkt/catalog-api/pkg/catalog/helpers/problem"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/loopfz/gadgeto/tonic"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// ErrorHook renders every handler error as application/problem+json.
func ErrorHook(c *gin.Context, err error) (int, interface{}) {
	c.Header("Content-Type", "application/problem+json")

	// 1) Bind/validate errors
	var be tonic.BindError
	if errors.As(err, &be) || isValidationErr(err) {
		apiErr := problem.NewBadRequest("Invalid request", invalidParamsFromBinding(err)...)
		return apiErr.Status, apiErr
	}

	// 2) Mapped problems pass through
	var apiErr problem.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, apiErr
	}

	internal := problem.NewInternalServerError(err.Error())
	return internal.Status, internal
}

func invalidParamsFromBinding(err error) []problem.InvalidParam {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []problem.InvalidParam{{Name: "body", Reason: err.Error()}}
	}
	out := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, problem.InvalidParam{
			Name:   fe.Field(),
			Reason: humanReason(fe),
		})
	}
	return out
}

func humanReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must contain at least " + fe.Param() + " item(s)"
	case "url":
		return "must be a valid URL (e.g. https://...)"
	default:
		return fe.Error()
	}
}

func isValidationErr(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.Split(f.Tag.Get("json"), ",")[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
