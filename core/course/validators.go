package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/courselogic/core"
)

var (
	levelTag  = "level"
	levelText = "level must be one of beginner, intermediate or advanced"

	categoryTag  = "category"
	categoryText = "unknown category"
)

// InitValidators registers the course validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(levelTag, inListValidation(Levels))
	core.RegisterCustomTranslation(validate, translator, levelTag, levelText)

	_ = validate.RegisterValidation(categoryTag, inListValidation(Categories))
	core.RegisterCustomTranslation(validate, translator, categoryTag, categoryText)
}

func inListValidation(list []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return inList(fl.Field().String(), list)
	}
}

func inList(val string, list []string) bool {
	for _, s := range list {
		if s == val {
			return true
		}
	}
	return false
}
