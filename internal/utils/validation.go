package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"medflow-web/internal/models"
)

// MaxAge is the oldest plausible patient age in years.
const MaxAge = 150

var fieldLabels = map[string]string{
	"firstName":    "First name",
	"lastName":     "Last name",
	"dateOfBirth":  "Date of birth",
	"phoneNumber":  "Phone number",
	"address":      "Address",
	"notes":        "Notes",
	"instructions": "Treatment instructions",
	"drugs":        "Drugs",
	"dosage":       "Dosage",
	"duration":     "Duration",
	"username":     "Username",
	"password":     "Password",
}

// Validator validates form structs and turns failures into ValidationError.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator creates a Validator. now is used for date-of-birth checks.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}

	// Report fields by their JSON names so messages line up with form inputs
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.validate.RegisterValidation("birthdate", func(fl validator.FieldLevel) bool {
		return v.birthDateProblem(fl.Field().String()) == ""
	})
	return v
}

var defaultValidator = NewValidator(nil)

// Validate performs validation on a struct with the default validator.
func Validate(s interface{}) error {
	return defaultValidator.Struct(s)
}

// Struct validates s. It returns nil or a *ValidationError.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	return v.FormatValidationError(err)
}

// FormatValidationError converts validator errors into a ValidationError
// keyed by field name.
func (v *Validator) FormatValidationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	out := &ValidationError{}
	for _, e := range errs {
		field := e.Field()
		if i := strings.IndexByte(field, '['); i >= 0 {
			field = field[:i]
		}
		out.Add(field, v.message(field, e))
	}
	return out
}

func (v *Validator) message(field string, e validator.FieldError) string {
	label, ok := fieldLabels[field]
	if !ok {
		label = field
	}
	switch e.Tag() {
	case "notblank", "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s entry", label, e.Param())
	case "birthdate":
		if s, ok := e.Value().(string); ok {
			return v.birthDateProblem(s)
		}
		return "Please enter a valid date of birth"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// birthDateProblem returns a user-facing message, or "" when s is acceptable.
func (v *Validator) birthDateProblem(s string) string {
	dob, err := models.ParseBirthDate(s)
	if err != nil {
		return "Please enter a valid date of birth"
	}
	age := models.AgeAt(dob, v.now())
	switch {
	case dob.After(v.now()) || age < 0:
		return "Date of birth cannot be in the future"
	case age > MaxAge:
		return "Please enter a valid date of birth"
	}
	return ""
}

// BindAndValidate binds the request body (JSON or form) to a struct and
// validates it. If either step fails, it sends an error response and returns
// false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBind(obj); err != nil {
		BadRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	if err := Validate(obj); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			UnprocessableEntity(c, verr)
		} else {
			BadRequest(c, "Validation failed: "+err.Error())
		}
		return false
	}
	return true
}
