package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/anttijankeri/object-image-server/internal/models"
)

// Issue describes one rejected field.
type Issue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Empty means "no link", anything else has to be an ObjectID.
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		_, err := bson.ObjectIDFromHex(value)
		return err == nil
	})

	return &Validator{validate: v}
}

// ValidateFull checks a create descriptor. A nil slice means the descriptor
// is acceptable.
func (v *Validator) ValidateFull(desc models.ImageDescriptor) []Issue {
	return v.check(desc)
}

// ValidatePartial checks an update patch. Absent fields are skipped, present
// ones follow the same rules as ValidateFull.
func (v *Validator) ValidatePartial(patch models.ImagePatch) []Issue {
	return v.check(patch)
}

func (v *Validator) check(value any) []Issue {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Issue{{Field: "", Rule: "invalid", Message: err.Error()}}
	}

	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, Issue{
			Field:   fieldPath(fe),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return issues
}

// fieldPath drops the struct name from the namespace: "ImageDescriptor.tags[2]" -> "tags[2]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "objectid":
		return "must be a 24 character hex object id"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
