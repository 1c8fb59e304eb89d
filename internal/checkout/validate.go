package checkout

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError maps address fields, by their JSON names, to a message
// that can be shown next to the field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "address is invalid: " + strings.Join(parts, "; ")
}

type AddressValidator struct {
	validate *validator.Validate
}

func NewAddressValidator() (*AddressValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("simple_email", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("v.RegisterValidation simple_email: %w", err)
	}
	if err := v.RegisterValidation("digits", digits); err != nil {
		return nil, fmt.Errorf("v.RegisterValidation digits: %w", err)
	}

	return &AddressValidator{validate: v}, nil
}

// Validate trims addr and checks it. It returns the trimmed address and a
// *ValidationError listing every failing field.
func (av *AddressValidator) Validate(addr domain.Address) (domain.Address, error) {
	addr = trimAddress(addr)

	err := av.validate.Struct(addr)
	if err == nil {
		return addr, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return addr, fmt.Errorf("validate.Struct: %w", err)
	}

	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = av.message(fe)
	}

	return addr, verr
}

func (av *AddressValidator) message(fe validator.FieldError) string {
	// a Caser is stateful, one per call
	label := cases.Title(language.English).String(fe.Field())

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "simple_email":
		return "Enter a valid email address"
	case "digits":
		return fmt.Sprintf("%s must be exactly %s digits", label, fe.Param())
	default:
		return label + " is invalid"
	}
}

func digits(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	s := fl.Field().String()
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func trimAddress(a domain.Address) domain.Address {
	return domain.Address{
		Name:    strings.TrimSpace(a.Name),
		Email:   strings.TrimSpace(a.Email),
		Phone:   strings.TrimSpace(a.Phone),
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Pincode: strings.TrimSpace(a.Pincode),
	}
}
