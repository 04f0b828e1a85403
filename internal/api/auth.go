package api

import (
	"context"
	"net/http"

	"github.com/matheus3301/chatflow/internal/chat"
)

// RegisterRequest is the multipart body of /register.
type RegisterRequest struct {
	Name        string
	Email       string
	PhoneNumber string
	Password    string
	Image       *chat.ImageFile
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	var out LoginResponse
	err = c.doJSON(ctx, request{
		op: "login", method: http.MethodPost, path: "/login",
		body: body, contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account pending email verification.
func (c *Client) Register(ctx context.Context, r RegisterRequest) (*RegisterResponse, error) {
	form := newMultipartForm()
	form.field("name", r.Name)
	form.field("email", r.Email)
	form.field("phoneNumber", r.PhoneNumber)
	form.field("password", r.Password)
	if r.Image != nil {
		form.file("image", *r.Image)
	}
	body, contentType, err := form.close()
	if err != nil {
		return nil, err
	}

	var out RegisterResponse
	err = c.doJSON(ctx, request{
		op: "register", method: http.MethodPost, path: "/register",
		body: body, contentType: contentType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP confirms the emailed one-time code.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*VerifyResponse, error) {
	body, err := jsonBody(map[string]string{"email": email, "otp": otp})
	if err != nil {
		return nil, err
	}
	var out VerifyResponse
	err = c.doJSON(ctx, request{
		op: "verify otp", method: http.MethodPost, path: "/verifyOtp",
		body: body, contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
