package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/hitoshi/coursehub/internal/model"
)

// requestValidator はリクエストDTOの検証器。スレッドセーフで、構造体情報をキャッシュする。
var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーのフィールド名はJSONのキー名で返す
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validator: %v", err))
	}
	return v
}

// validateRequest はvalidateタグに従ってreqを検証する。
// 違反がある場合はフィールド名→メッセージの詳細を持つVALIDATION_FAILEDエラーを返す。
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, exists := details[fe.Field()]; exists {
			continue
		}
		details[fe.Field()] = validationMessage(fe)
	}
	return model.NewValidationError(details)
}

// validationMessage はフィールドエラーを利用者向けメッセージに変換する。
func validationMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be blank"
	case "email":
		return "must be a well-formed email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "min":
		if isString {
			return fmt.Sprintf("length must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("length must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
