package auth

import (
	"regexp"
	"strings"

	"github.com/matheus3301/chatflow/internal/chat"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// MaxAvatarSize bounds the optional registration avatar.
const MaxAvatarSize = 5 * 1024 * 1024

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[0-9]{10}$`)
	otpRe   = regexp.MustCompile(`^[0-9]{6}$`)
)

// RegisterForm is the input of Register.
type RegisterForm struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Confirm  string
	Avatar   *chat.ImageFile
}

// ValidateEmail checks the address shape.
func ValidateEmail(op, email string) error {
	if strings.TrimSpace(email) == "" {
		return chat.Validation(op, "email is required")
	}
	if !emailRe.MatchString(strings.TrimSpace(email)) {
		return chat.Validation(op, "please enter a valid email address")
	}
	return nil
}

// ValidateLogin checks the login form.
func ValidateLogin(email, password string) error {
	if err := ValidateEmail("login", email); err != nil {
		return err
	}
	if password == "" {
		return chat.Validation("login", "password is required")
	}
	return nil
}

// ValidateRegistration checks the registration form.
func ValidateRegistration(f RegisterForm) error {
	const op = "register"
	if strings.TrimSpace(f.Name) == "" {
		return chat.Validation(op, "name is required")
	}
	if err := ValidateEmail(op, f.Email); err != nil {
		return err
	}
	if !phoneRe.MatchString(strings.TrimSpace(f.Phone)) {
		return chat.Validation(op, "phone number must be exactly 10 digits")
	}
	if len(f.Password) < MinPasswordLen {
		return chat.Validation(op, "password must be at least 6 characters")
	}
	if f.Password != f.Confirm {
		return chat.Validation(op, "passwords do not match")
	}
	if a := f.Avatar; a != nil {
		if !strings.HasPrefix(a.ContentType, "image/") {
			return chat.Validation(op, "avatar must be an image")
		}
		if a.Size() > MaxAvatarSize {
			return chat.Validation(op, "avatar must be 5 MB or smaller")
		}
	}
	return nil
}

// ValidateCode checks a verification code.
func ValidateCode(email, code string) error {
	if err := ValidateEmail("verify code", email); err != nil {
		return err
	}
	if !otpRe.MatchString(strings.TrimSpace(code)) {
		return chat.Validation("verify code", "code must be 6 digits")
	}
	return nil
}
