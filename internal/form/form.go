package form

import (
	"errors"
	"fmt"

	"github.com/DukeRupert/prefork/internal/domain"
)

// Form is an ordered set of field bindings.
type Form struct {
	op       string
	bindings []FieldBinding
	byName   map[string]FieldBinding
}

// New creates an empty form. op labels validation errors.
func New(op string) *Form {
	return &Form{
		op:     op,
		byName: make(map[string]FieldBinding),
	}
}

// Register adds a binding. Names must be unique within a form.
func (f *Form) Register(b FieldBinding) error {
	if _, exists := f.byName[b.Name()]; exists {
		return fmt.Errorf("form %s: field %q already registered", f.op, b.Name())
	}
	f.bindings = append(f.bindings, b)
	f.byName[b.Name()] = b
	return nil
}

// MustRegister is Register for statically built forms.
func (f *Form) MustRegister(bindings ...FieldBinding) *Form {
	for _, b := range bindings {
		if err := f.Register(b); err != nil {
			panic(err)
		}
	}
	return f
}

// Fields returns the registered field names in registration order.
func (f *Form) Fields() []string {
	names := make([]string, len(f.bindings))
	for i, b := range f.bindings {
		names[i] = b.Name()
	}
	return names
}

// Validate runs every binding and collects failures. It returns nil when all
// fields pass.
func (f *Form) Validate(values Values) *domain.ValidationError {
	var ve *domain.ValidationError
	for _, b := range f.bindings {
		err := b.Validate(values[b.Name()], values)
		if err == nil {
			continue
		}
		msg := err.Error()
		var fe *FieldError
		if errors.As(err, &fe) {
			msg = fe.Message
		}
		if ve == nil {
			ve = domain.NewValidationError(f.op, b.Name(), msg)
		} else {
			domain.AddFieldError(ve, b.Name(), msg)
		}
	}
	return ve
}

// Blur runs the blur hook of a single field. Unknown fields pass.
func (f *Form) Blur(name string, values Values) error {
	b, ok := f.byName[name]
	if !ok {
		return nil
	}
	return b.OnBlur(values[name], values)
}
