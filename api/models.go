package api

// LoginRequest is the body of the login call. FaceImageBase64 is always sent,
// empty on the password fallback.
type LoginRequest struct {
	FaceImageBase64 string  `json:"face_image_base64"`
	Email           *string `json:"email,omitempty"`
	Password        *string `json:"password,omitempty"`
}

// RegisterRequest is the body of the register call. A nil Password means
// "not provided", which the server treats differently from "".
type RegisterRequest struct {
	Email           string  `json:"email"`
	FullName        string  `json:"full_name"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	Password        *string `json:"password,omitempty"`
	FaceImageBase64 string  `json:"face_image_base64"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	LoginMethod  string `json:"login_method,omitempty"`
}

// User is the profile returned by register and users/me
type User struct {
	ID                  string  `json:"id"`
	Email               string  `json:"email"`
	FullName            string  `json:"full_name"`
	PhoneNumber         *string `json:"phone_number,omitempty"`
	Role                string  `json:"role"`
	SubscriptionTier    string  `json:"subscription_tier"`
	IsActive            bool    `json:"is_active"`
	IsVerified          bool    `json:"is_verified"`
	KYCVerified         bool    `json:"kyc_verified"`
	TotalEarningsUSD    float64 `json:"total_earnings_usd"`
	AvailableBalanceUSD float64 `json:"available_balance_usd"`
	PendingBalanceUSD   float64 `json:"pending_balance_usd"`
	PreferredCurrency   string  `json:"preferred_currency"`
	CurrentStreakDays   int     `json:"current_streak_days"`
	LongestStreakDays   int     `json:"longest_streak_days"`
	CreatedAt           string  `json:"created_at"`
}

// ErrorResponse is the error body of every non-2xx response
type ErrorResponse struct {
	Detail string `json:"detail"`
}
