package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/service"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
)

type AuthController struct {
	AuthService     *service.AuthService
	PasswordService *service.PasswordService
	Cookies         CookiePolicy
}

func NewAuthController(authService *service.AuthService, passwordService *service.PasswordService, cookies CookiePolicy) *AuthController {
	return &AuthController{
		AuthService:     authService,
		PasswordService: passwordService,
		Cookies:         cookies,
	}
}

// AuthResponse is the user plus a fresh access token.
// swagger:model AuthResponse
type AuthResponse struct {
	*model.User
	Token string `json:"token"`
}

// RegisterRequest defines model for registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId"`
}

// Register godoc
// @Summary Register a user
// @Description Creates an account. Admin accounts need an admin caller unless none exist yet.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param   body body RegisterRequest true "Registration data"
// @Success 201 {object} util.Response{data=AuthResponse} "Created"
// @Failure 400 {object} util.Response "Invalid input or email taken"
// @Failure 403 {object} util.Response "Admin registration not allowed"
// @Router /api/users [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Please provide name, email and password")
		return
	}

	result, err := c.AuthService.Register(ctx.Request.Context(), service.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         model.UserRole(req.Role),
		DepartmentID: req.DepartmentID,
		Caller:       util.GetUserFromContext(ctx),
	}, clientInfo(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, AuthResponse{User: result.User, Token: result.AccessToken})
}

// LoginRequest accepts an email address or an employee id in Email.
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login godoc
// @Summary Log in
// @Description Authenticates by email or employee id. Sets the jwt and refreshToken cookies.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "Credentials"
// @Success 200 {object} util.Response{data=AuthResponse} "Logged in"
// @Failure 400 {object} util.Response "Malformed identifier"
// @Failure 401 {object} util.Response "Invalid credentials"
// @Failure 403 {object} util.Response "Account inactive"
// @Failure 423 {object} util.Response "Account locked"
// @Router /api/users/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		util.BadRequest(ctx, "Please provide email and password")
		return
	}

	result, err := c.AuthService.Login(ctx.Request.Context(), req.Email, req.Password, clientInfo(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	c.Cookies.SetAccess(ctx, result.AccessToken)
	c.Cookies.SetRefresh(ctx, result.RefreshToken)
	util.Success(ctx, AuthResponse{User: result.User, Token: result.AccessToken})
}

// RefreshToken godoc
// @Summary Refresh the access token
// @Description Issues a new access token from the refreshToken cookie.
// @Tags Auth
// @Produce  json
// @Success 200 {object} util.Response{data=object} "New access token"
// @Failure 401 {object} util.Response "Missing or invalid refresh token"
// @Router /api/users/refresh-token [post]
func (c *AuthController) RefreshToken(ctx *gin.Context) {
	refresh, err := ctx.Cookie(util.RefreshCookie)
	if err != nil || refresh == "" {
		util.Error(ctx, 401, "Refresh token not found")
		return
	}

	result, err := c.AuthService.Refresh(ctx.Request.Context(), refresh, clientInfo(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	c.Cookies.SetAccess(ctx, result.AccessToken)
	util.SuccessMessage(ctx, "Token refreshed successfully", gin.H{"token": result.AccessToken})
}

// Logout godoc
// @Summary Log out
// @Description Ends the current session and clears the cookies. Always succeeds.
// @Tags Auth
// @Produce  json
// @Success 200 {object} util.Response "Logged out"
// @Router /api/users/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	var err error
	if claims := util.GetUserFromContext(ctx); claims != nil {
		err = c.AuthService.Logout(ctx.Request.Context(), claims.UserID)
	} else if refresh, cookieErr := ctx.Cookie(util.RefreshCookie); cookieErr == nil {
		err = c.AuthService.LogoutWithRefreshToken(ctx.Request.Context(), refresh)
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	c.Cookies.Clear(ctx)
	util.SuccessMessage(ctx, "Logged out successfully", nil)
}

// EmailRequest carries only an email address.
// swagger:model EmailRequest
type EmailRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordOTP godoc
// @Summary Request a password reset code
// @Description Always answers with the same message whether or not the account exists.
// @Tags Password
// @Accept  json
// @Produce  json
// @Param   body body EmailRequest true "Account email"
// @Success 200 {object} util.Response "Neutral acknowledgement"
// @Router /api/users/forgot-password-otp [post]
func (c *AuthController) ForgotPasswordOTP(ctx *gin.Context) {
	var req EmailRequest
	if err := ctx.ShouldBindJSON(&req); err == nil {
		c.PasswordService.ForgotPasswordOTP(ctx.Request.Context(), req.Email)
	}
	util.SuccessMessage(ctx, util.NeutralOTPMessage, nil)
}

// VerifyForgotOTPRequest defines model for checking a reset code
// swagger:model VerifyForgotOTPRequest
type VerifyForgotOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyForgotPasswordOTP godoc
// @Summary Check a password reset code
// @Tags Password
// @Accept  json
// @Produce  json
// @Param   body body VerifyForgotOTPRequest true "Email and code"
// @Success 200 {object} util.Response "Code valid"
// @Failure 400 {object} util.Response "Invalid or expired OTP"
// @Router /api/users/verify-forgot-password-otp [post]
func (c *AuthController) VerifyForgotPasswordOTP(ctx *gin.Context) {
	var req VerifyForgotOTPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.HandleError(ctx, util.ErrInvalidOTP)
		return
	}

	if err := c.PasswordService.VerifyForgotPasswordOTP(ctx.Request.Context(), req.Email, req.OTP); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "OTP verified successfully", nil)
}

// ResetWithOTPRequest defines model for an OTP password reset
// swagger:model ResetWithOTPRequest
type ResetWithOTPRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ResetPasswordWithOTP godoc
// @Summary Reset a forgotten password with a code
// @Description The new password needs upper and lower case letters, a digit and a symbol.
// @Tags Password
// @Accept  json
// @Produce  json
// @Param   body body ResetWithOTPRequest true "Reset data"
// @Success 200 {object} util.Response "Password reset"
// @Failure 400 {object} util.Response "Invalid input or code"
// @Router /api/users/reset-password-with-otp [put]
func (c *AuthController) ResetPasswordWithOTP(ctx *gin.Context) {
	var req ResetWithOTPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Invalid request body")
		return
	}

	err := c.PasswordService.ResetPasswordWithOTP(ctx.Request.Context(), req.Email, req.OTP, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "Password reset successfully. Please log in with your new password.", nil)
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Description Always answers with the same message whether or not the account exists.
// @Tags Password
// @Accept  json
// @Produce  json
// @Param   body body EmailRequest true "Account email"
// @Success 200 {object} util.Response "Neutral acknowledgement"
// @Router /api/users/forgot-password [post]
func (c *AuthController) ForgotPassword(ctx *gin.Context) {
	var req EmailRequest
	if err := ctx.ShouldBindJSON(&req); err == nil {
		c.PasswordService.ForgotPasswordLink(ctx.Request.Context(), req.Email)
	}
	util.SuccessMessage(ctx, util.NeutralResetLinkMessage, nil)
}

// ResetPasswordRequest defines model for a link password reset
// swagger:model ResetPasswordRequest
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword godoc
// @Summary Reset a forgotten password with a link token
// @Tags Password
// @Accept  json
// @Produce  json
// @Param   token path string true "Reset token"
// @Param   body body ResetPasswordRequest true "New password"
// @Success 200 {object} util.Response "Password reset"
// @Failure 400 {object} util.Response "Invalid or expired token"
// @Router /api/users/reset-password/{token} [post]
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Invalid request body")
		return
	}

	if err := c.PasswordService.ResetPasswordWithToken(ctx.Request.Context(), ctx.Param("token"), req.Password); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "Password reset successfully. Please log in with your new password.", nil)
}
