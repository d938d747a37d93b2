package form

import (
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestField_FirstFailingRuleWins(t *testing.T) {
	f := NewField("password",
		Required("required"),
		MinLength(8, "too short"),
	)

	err := f.Validate("", nil)
	require.Error(t, err)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "password", fe.Field)
	assert.Equal(t, "required", fe.Message)

	err = f.Validate("abc", nil)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "too short", fe.Message)

	assert.NoError(t, f.Validate("abcdefgh", nil))
}

func TestField_OnBlur(t *testing.T) {
	plain := NewField("name", Required("required"))
	assert.NoError(t, plain.OnBlur("", nil), "fields without blur validation pass on blur")

	blurring := NewField("name", Required("required")).ValidateOnBlur()
	assert.Error(t, blurring.OnBlur("", nil))
	assert.NoError(t, blurring.OnBlur("Ada", nil))
}

func TestRules(t *testing.T) {
	digits := regexp.MustCompile(`^\d+$`)

	tests := []struct {
		name   string
		rule   Rule
		value  string
		values Values
		fails  bool
	}{
		{"required empty", Required("x"), "", nil, true},
		{"required whitespace", Required("x"), "   ", nil, true},
		{"required present", Required("x"), "a", nil, false},
		{"min length short", MinLength(3, "x"), "ab", nil, true},
		{"min length counts runes", MinLength(3, "x"), "äöü", nil, false},
		{"min length empty passes", MinLength(3, "x"), "", nil, false},
		{"max length over", MaxLength(3, "x"), "abcd", nil, true},
		{"max length at limit", MaxLength(3, "x"), "abc", nil, false},
		{"max length counts runes", MaxLength(3, "x"), "äöü", nil, false},
		{"max bytes counts bytes", MaxBytes(3, "x"), "äöü", nil, true},
		{"max bytes at limit", MaxBytes(3, "x"), "abc", nil, false},
		{"pattern mismatch", Pattern(digits, "x"), "12a", nil, true},
		{"pattern match", Pattern(digits, "x"), "123", nil, false},
		{"email invalid", Email("x"), "not-an-email", nil, true},
		{"email valid", Email("x"), "ada@example.com", nil, false},
		{"match differs", MatchField("password", "x"), "a", Values{"password": "b"}, true},
		{"match equal", MatchField("password", "x"), "a", Values{"password": "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.rule(tt.value, tt.values)
			if tt.fails {
				assert.Equal(t, "x", msg)
			} else {
				assert.Empty(t, msg)
			}
		})
	}
}

func TestIsEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"first.last@sub.example.org", true},
		{"", false},
		{"@example.com", false},
		{"user@", false},
		{"user@@example.com", false},
		{"user@localhost", false},
		{"user..name@example.com", false},
		{strings.Repeat("a", 250) + "@x.io", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmail(tt.email))
		})
	}
}

func TestForm_RegisterDuplicate(t *testing.T) {
	f := New("test")
	require.NoError(t, f.Register(NewField("email")))
	assert.Error(t, f.Register(NewField("email")))
	assert.Equal(t, []string{"email"}, f.Fields())
}

func TestRegisterForm_Validate(t *testing.T) {
	tests := []struct {
		name   string
		values Values
		want   map[string]string
	}{
		{
			name: "valid",
			values: Values{
				FieldName: "Ada", FieldEmail: "ada@example.com",
				FieldPassword: "correct-horse", FieldConfirmPassword: "correct-horse",
			},
			want: nil,
		},
		{
			name: "missing confirmation",
			values: Values{
				FieldName: "Ada", FieldEmail: "ada@example.com",
				FieldPassword: "correct-horse",
			},
			want: map[string]string{FieldConfirmPassword: "Please confirm your password."},
		},
		{
			name: "mismatched confirmation",
			values: Values{
				FieldName: "Ada", FieldEmail: "ada@example.com",
				FieldPassword: "correct-horse", FieldConfirmPassword: "battery-staple",
			},
			want: map[string]string{FieldConfirmPassword: "Passwords do not match."},
		},
		{
			name:   "everything missing",
			values: Values{},
			want: map[string]string{
				FieldName:            "Please enter your name.",
				FieldEmail:           "Please enter your email.",
				FieldPassword:        "Please enter a password.",
				FieldConfirmPassword: "Please confirm your password.",
			},
		},
		{
			name: "short password",
			values: Values{
				FieldName: "Ada", FieldEmail: "ada@example.com",
				FieldPassword: "short", FieldConfirmPassword: "short",
			},
			want: map[string]string{FieldPassword: "Password must be at least 8 characters."},
		},
		{
			name: "multibyte name within limit",
			values: Values{
				FieldName: strings.Repeat("é", 60), FieldEmail: "ada@example.com",
				FieldPassword: "correct-horse", FieldConfirmPassword: "correct-horse",
			},
			want: nil,
		},
		{
			name: "name over limit",
			values: Values{
				FieldName: strings.Repeat("é", 101), FieldEmail: "ada@example.com",
				FieldPassword: "correct-horse", FieldConfirmPassword: "correct-horse",
			},
			want: map[string]string{FieldName: "Name must be 100 characters or less."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ve := RegisterForm().Validate(tt.values)
			if tt.want == nil {
				assert.Nil(t, ve)
				return
			}
			require.NotNil(t, ve)
			assert.Equal(t, "form.register", ve.Op)
			assert.Equal(t, tt.want, ve.Fields)
		})
	}
}

func TestLoginForm_Blur(t *testing.T) {
	f := LoginForm()

	assert.Error(t, f.Blur(FieldEmail, Values{FieldEmail: "nope"}))
	assert.NoError(t, f.Blur(FieldEmail, Values{FieldEmail: "ada@example.com"}))
	assert.NoError(t, f.Blur(FieldPassword, Values{}), "password does not validate on blur")
	assert.NoError(t, f.Blur("unknown", Values{}))
}

func TestFromURLValues(t *testing.T) {
	v := url.Values{"email": {"a@b.co", "ignored"}, "password": {"pw"}}
	assert.Equal(t, Values{"email": "a@b.co", "password": "pw"}, FromURLValues(v))
}
