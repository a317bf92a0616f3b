package account

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

// SignupInput is the local signup payload.
type SignupInput struct {
	Email        string `form:"email" json:"email"`
	Phone        string `form:"phone" json:"phone"`
	Password     string `form:"password" json:"password"`
	CaptchaToken string `form:"captcha_token" json:"captcha_token"`
	RemoteIP     string `form:"-" json:"-"`
}

// Validate runs field level validation. These errors are the only
// ones safe to detail back to the caller.
func (r SignupInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Phone,
			validation.Required,
			validation.Match(phonePattern).Error("must be exactly 10 digits"),
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 72),
		),
	)
}

// SigninInput is the local sign-in payload.
type SigninInput struct {
	Email        string `form:"email" json:"email"`
	Password     string `form:"password" json:"password"`
	CaptchaToken string `form:"captcha_token" json:"captcha_token"`
	RemoteIP     string `form:"-" json:"-"`
}

// Validate runs field level validation.
func (r SigninInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// OTPInput is the verify-otp payload.
type OTPInput struct {
	Code string `form:"code" json:"code"`
}

// Validate requires exactly six digits.
func (r OTPInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Code,
			validation.Required,
			validation.Match(otpPattern).Error("must be a 6 digit code"),
		),
	)
}
