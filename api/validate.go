package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	//report fields by their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

//Validate validates the given ChatTurnRequest. The returned error is an *Error with Type
//ErrorTypeUser and Fields populated with one entry per failing field.
func (r *ChatTurnRequest) Validate() error {
	if r == nil {
		return &Error{Description: "Could not validate request", Type: ErrorTypeUser, Err: errors.New("request is empty")}
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Description: "Could not validate request", Type: ErrorTypeServer, Err: err}
	}

	fields := make(map[string][]string)
	var msgs []string
	for _, fe := range verrs {
		field := fieldPath(fe)
		msg := fieldMessage(fe)
		fields[field] = append(fields[field], msg)
		msgs = append(msgs, field+" "+msg)
	}

	return &Error{
		Description: "Could not validate request",
		Type:        ErrorTypeUser,
		Fields:      fields,
		Err:         errors.New(strings.Join(msgs, "; ")),
	}
}

//fieldPath strips the root struct name from the namespace, e.g. "messages[3].role"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	isSlice := fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isSlice {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if isSlice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
