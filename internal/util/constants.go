package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// Cookie names and paths of the HTTP surface.
const (
	AccessCookie      = "jwt"
	RefreshCookie     = "refreshToken"
	AccessCookiePath  = "/"
	RefreshCookiePath = "/api/users/refresh-token"
)

const (
	OTPLength            = 6
	ResetTokenBytes      = 32
	InitialPasswordDigit = 4
)

// NeutralOTPMessage is returned by forgot-password whether or not the account exists.
const NeutralOTPMessage = "If an account with that email exists, an OTP has been sent."

const NeutralResetLinkMessage = "If an account with that email exists, a password reset link has been sent."
