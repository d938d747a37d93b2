package form

// Field names shared by the auth forms and handlers.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
)

// LoginForm validates a sign-in submission.
func LoginForm() *Form {
	return New("form.login").MustRegister(
		NewField(FieldEmail,
			Required("Please enter your email."),
			Email("Please enter a valid email address."),
		).ValidateOnBlur(),
		NewField(FieldPassword,
			Required("Please enter your password."),
		),
	)
}

// RegisterForm validates a sign-up submission.
func RegisterForm() *Form {
	return New("form.register").MustRegister(
		NewField(FieldName,
			Required("Please enter your name."),
			MaxLength(100, "Name must be 100 characters or less."),
		),
		NewField(FieldEmail,
			Required("Please enter your email."),
			Email("Please enter a valid email address."),
		).ValidateOnBlur(),
		NewField(FieldPassword,
			Required("Please enter a password."),
			MinLength(MinPasswordLength, "Password must be at least 8 characters."),
			MaxBytes(MaxPasswordLength, "Password must be 72 characters or less."),
		).ValidateOnBlur(),
		NewField(FieldConfirmPassword,
			Required("Please confirm your password."),
			MatchField(FieldPassword, "Passwords do not match."),
		).ValidateOnBlur(),
	)
}
