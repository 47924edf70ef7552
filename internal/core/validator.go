package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"billingsync/internal/types"
)

// Validator wraps go-playground/validator with the domain tags:
//
//	stripe_price  value looks like a Stripe price id (price_...)
//	return_path   site-relative path starting with a single "/"
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with the custom tags registered.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("stripe_price", func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), "price_")
	})
	_ = v.RegisterValidation("return_path", func(fl validator.FieldLevel) bool {
		return IsSafeReturnPath(fl.Field().String())
	})

	return &Validator{validate: v, logger: logger}
}

// IsSafeReturnPath reports whether p is a same-site path. Scheme-relative
// ("//evil.com") and backslash forms are rejected.
func IsSafeReturnPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	return !strings.ContainsAny(p, "\\\r\n")
}

// ValidateStruct validates s and maps the first failing field to an AppError.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fe := verrs[0]
	details := map[string]any{"field": fe.Field(), "rule": fe.Tag()}

	switch fe.Tag() {
	case "required":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, fe.Field()+" is required", err, details)
	case "stripe_price":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPrice, "price_id is not a valid price", err, details)
	case "return_path":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPath, "return_path must be a site-relative path", err, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, fe.Field()+" is invalid", err, details)
	}
}
