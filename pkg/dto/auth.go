package dto

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	// TOTPCode is required once the user has enabled a second factor.
	TOTPCode string `json:"totp_code"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type OTPEnrollResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type OTPVerifyRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}
