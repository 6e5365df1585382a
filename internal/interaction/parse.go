package interaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformed is returned when the body is not decodable JSON at all.
var ErrMalformed = errors.New("malformed interaction body")

// FieldError describes one offending field, addressed by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports a well-formed body that matches no interaction variant.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid interaction: " + strings.Join(parts, "; ")
}

// envelope is decoded first so Ping can be recognized without looking at anything else.
type envelope struct {
	Type *Type `json:"type" validate:"required,interaction_type"`
}

type invocation struct {
	User   *User   `json:"user"`
	Member *Member `json:"member"`
	Data   *Data   `json:"data" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON field names instead of Go names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Only the closed variant set is accepted.
	if err := v.RegisterValidation("interaction_type", func(fl validator.FieldLevel) bool {
		return Type(fl.Field().Int()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

// Parse decodes an authenticated body into a Request.
// The result is either a fully valid variant or an error; decoding never guesses.
func Parse(body []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Request{}, decodeError(err)
	}
	if err := validateStruct(&env); err != nil {
		return Request{}, err
	}

	t := *env.Type
	if t == TypePing {
		return Request{Type: TypePing}, nil
	}

	var inv invocation
	if err := json.Unmarshal(body, &inv); err != nil {
		return Request{}, decodeError(err)
	}
	if err := validateStruct(&inv); err != nil {
		return Request{}, err
	}

	return Request{
		Type:   t,
		User:   inv.User,
		Member: inv.Member,
		Data:   inv.Data,
	}, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &ValidationError{Fields: []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("wrong type: got JSON %s", typeErr.Value),
		}}}
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate interaction: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from "invocation.data.name".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "interaction_type":
		return fmt.Sprintf("unknown interaction type, want %d-%d", TypePing, TypeModalSubmit)
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
