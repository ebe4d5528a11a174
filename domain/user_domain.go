package domain

import "errors"

var (
	MessageSuccessRegister       = "user registered successfully"
	MessageSuccessLogin          = "login success"
	MessageSuccessGetMe          = "success get current user"
	MessageSuccessGetUsers       = "success get users"
	MessageSuccessGetUserDetail  = "success get user detail"
	MessageSuccessUpdateUser     = "user updated successfully"
	MessageSuccessForgotPassword = "password reset email sent"
	MessageSuccessResetPassword  = "password reset successfully"

	MessageFailedRegister       = "failed to register user"
	MessageFailedLogin          = "failed to login"
	MessageFailedGetMe          = "failed to get current user"
	MessageFailedGetUsers       = "failed to get users"
	MessageFailedGetUserDetail  = "failed to get user detail"
	MessageFailedUpdateUser     = "failed to update user"
	MessageFailedForgotPassword = "failed to send password reset email"
	MessageFailedResetPassword  = "failed to reset password"

	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAlreadyUsed     = errors.New("email already used")
	ErrUsernameAlreadyUsed  = errors.New("username already used")
	ErrCredentialsInvalid   = errors.New("invalid email or password")
	ErrPasswordResetExpired = errors.New("password reset link expired")
)

type (
	RegisterRequest struct {
		Email     string `json:"email" validate:"required,email,max=254"`
		Username  string `json:"username" validate:"required,max=150"`
		FirstName string `json:"first_name" validate:"required,max=150"`
		LastName  string `json:"last_name" validate:"required,max=150"`
		Password  string `json:"password" validate:"required,min=8"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string       `json:"token"`
		User  UserResponse `json:"user"`
	}

	UpdateUserRequest struct {
		Username  string `json:"username" validate:"omitempty,max=150"`
		FirstName string `json:"first_name" validate:"omitempty,max=150"`
		LastName  string `json:"last_name" validate:"omitempty,max=150"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ResetPasswordRequest struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}

	UserResponse struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		Username     string `json:"username"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		IsSubscribed bool   `json:"is_subscribed"`
	}
)
