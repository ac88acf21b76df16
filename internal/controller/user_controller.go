package controller

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/repository"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/service"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
)

// UserController serves the authenticated /api/users endpoints.
type UserController struct {
	AuthService     *service.AuthService
	PasswordService *service.PasswordService
	UserService     *service.UserService
}

func NewUserController(authService *service.AuthService, passwordService *service.PasswordService, userService *service.UserService) *UserController {
	return &UserController{
		AuthService:     authService,
		PasswordService: passwordService,
		UserService:     userService,
	}
}

func currentUserID(ctx *gin.Context) (string, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return "", false
	}
	return claims.UserID, true
}

func parseDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	if t, err := time.Parse(util.DateFormat, *value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, util.Validation("joiningDate must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}

// GetProfile godoc
// @Summary Current user's profile
// @Tags Users
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.User} "Profile"
// @Failure 401 {object} util.Response "Not authorized"
// @Failure 404 {object} util.Response "User not found"
// @Router /api/users/profile [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	user, err := c.AuthService.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// UpdateProfileRequest holds the editable fields; omitted fields are kept.
// swagger:model UpdateProfileRequest
type UpdateProfileRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	JoiningDate    *string `json:"joiningDate"`
	Qualification  *string `json:"qualification"`
	Experience     *int    `json:"experience"`
	Specialization *string `json:"specialization"`
}

func (r UpdateProfileRequest) toUpdate() (model.ProfileUpdate, error) {
	joining, err := parseDate(r.JoiningDate)
	if err != nil {
		return model.ProfileUpdate{}, err
	}
	return model.ProfileUpdate{
		Name:           r.Name,
		Email:          r.Email,
		Phone:          r.Phone,
		Address:        r.Address,
		JoiningDate:    joining,
		Qualification:  r.Qualification,
		Experience:     r.Experience,
		Specialization: r.Specialization,
	}, nil
}

// UpdateProfile godoc
// @Summary Update the current user's profile
// @Tags Users
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} util.Response{data=model.User} "Updated profile"
// @Failure 400 {object} util.Response "Invalid input or email taken"
// @Router /api/users/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Invalid request body")
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	user, err := c.AuthService.UpdateProfile(ctx.Request.Context(), userID, upd)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// ChangePasswordRequest defines model for a direct password change
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword godoc
// @Summary Change password with the current password
// @Tags Password
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ChangePasswordRequest true "Passwords"
// @Success 200 {object} util.Response "Password changed"
// @Failure 400 {object} util.Response "Invalid input"
// @Failure 401 {object} util.Response "Current password incorrect"
// @Router /api/users/change-password [put]
func (c *UserController) ChangePassword(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Invalid request body")
		return
	}

	err := c.PasswordService.ChangePassword(ctx.Request.Context(), userID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "Password changed successfully", nil)
}

// RequestPasswordChangeOTP godoc
// @Summary Email a password change code to the current user
// @Tags Password
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "Code issued"
// @Failure 404 {object} util.Response "User not found"
// @Failure 429 {object} util.Response "Requested too recently"
// @Router /api/users/request-password-change-otp [post]
func (c *UserController) RequestPasswordChangeOTP(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	sent, err := c.PasswordService.RequestPasswordChangeOTP(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	message := "OTP sent to your email"
	if !sent {
		message = "OTP generated but the email could not be delivered"
	}
	util.SuccessMessage(ctx, message, gin.H{"emailSent": sent})
}

// OTPRequest defines model for a bare code
// swagger:model OTPRequest
type OTPRequest struct {
	OTP string `json:"otp"`
}

// VerifyPasswordChangeOTP godoc
// @Summary Check a password change code without consuming it
// @Tags Password
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body OTPRequest true "Code"
// @Success 200 {object} util.Response "Code valid"
// @Failure 400 {object} util.Response "Invalid or expired OTP"
// @Router /api/users/verify-password-change-otp [post]
func (c *UserController) VerifyPasswordChangeOTP(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req OTPRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Invalid request body")
		return
	}

	if err := c.PasswordService.VerifyPasswordChangeOTP(ctx.Request.Context(), userID, req.OTP); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "OTP verified successfully", nil)
}

// OTPChangePasswordRequest defines model for an OTP password change
// swagger:model OTPChangePasswordRequest
type OTPChangePasswordRequest struct {
	OTP             string `json:"otp"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// VerifyOTPAndChangePassword godoc
// @Summary Change password with an emailed code
// @Tags Password
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body OTPChangePasswordRequest true "Code and passwords"
// @Success 200 {object} util.Response "Password changed"
// @Failure 400 {object} util.Response "Invalid input or code"
// @Failure 404 {object} util.Response "User not found"
// @Router /api/users/verify-otp-change-password [put]
func (c *UserController) VerifyOTPAndChangePassword(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req OTPChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Invalid request body")
		return
	}

	err := c.PasswordService.VerifyOTPAndChangePassword(ctx.Request.Context(), userID, req.OTP, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "Password changed successfully", nil)
}

// PreviewEmployeeID godoc
// @Summary Preview the next employee id of a department
// @Tags Admin
// @Produce  json
// @Security ApiKeyAuth
// @Param   departmentId path string true "Department id"
// @Success 200 {object} util.Response{data=object} "Next employee id"
// @Failure 404 {object} util.Response "Department not found"
// @Router /api/users/preview-employee-id/{departmentId} [get]
func (c *UserController) PreviewEmployeeID(ctx *gin.Context) {
	employeeID, dept, err := c.UserService.PreviewEmployeeID(ctx.Request.Context(), ctx.Param("departmentId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"employeeId": employeeID, "department": dept})
}

// CreateTeacherRequest defines model for provisioning a teacher
// swagger:model CreateTeacherRequest
type CreateTeacherRequest struct {
	Name           string  `json:"name" binding:"required"`
	Email          string  `json:"email" binding:"required"`
	DepartmentID   string  `json:"departmentId" binding:"required"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	JoiningDate    *string `json:"joiningDate"`
	Qualification  *string `json:"qualification"`
	Experience     *int    `json:"experience"`
	Specialization *string `json:"specialization"`
}

// CreatedAccountResponse is a provisioned account and its welcome email status.
// swagger:model CreatedAccountResponse
type CreatedAccountResponse struct {
	*model.User
	EmailSent bool `json:"emailSent"`
}

// CreateTeacher godoc
// @Summary Create a teacher
// @Description Allocates an employee id and emails a generated initial password.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateTeacherRequest true "Teacher"
// @Success 201 {object} util.Response{data=CreatedAccountResponse} "Created"
// @Failure 400 {object} util.Response "Invalid input or email taken"
// @Failure 404 {object} util.Response "Department not found"
// @Router /api/users/teachers [post]
func (c *UserController) CreateTeacher(ctx *gin.Context) {
	var req CreateTeacherRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Please provide name, email and department")
		return
	}
	joining, err := parseDate(req.JoiningDate)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	created, err := c.UserService.CreateTeacher(ctx.Request.Context(), service.TeacherInput{
		Name:         req.Name,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		Profile: model.TeacherProfile{
			Phone:          req.Phone,
			Address:        req.Address,
			JoiningDate:    joining,
			Qualification:  req.Qualification,
			Experience:     req.Experience,
			Specialization: req.Specialization,
		},
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, CreatedAccountResponse{User: created.User, EmailSent: created.EmailSent})
}

// CreateAdminRequest defines model for provisioning an admin
// swagger:model CreateAdminRequest
type CreateAdminRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

// CreateAdmin godoc
// @Summary Create an admin
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body CreateAdminRequest true "Admin"
// @Success 201 {object} util.Response{data=CreatedAccountResponse} "Created"
// @Failure 400 {object} util.Response "Invalid input or email taken"
// @Router /api/users/admins [post]
func (c *UserController) CreateAdmin(ctx *gin.Context) {
	var req CreateAdminRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Please provide name and email")
		return
	}

	created, err := c.UserService.CreateAdmin(ctx.Request.Context(), req.Name, req.Email)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, CreatedAccountResponse{User: created.User, EmailSent: created.EmailSent})
}

// ListUsers godoc
// @Summary List users
// @Tags Admin
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "Page" default(1)
// @Param   pageSize query int false "Page size" default(20)
// @Param   role query string false "admin or teacher"
// @Param   departmentId query string false "Department id"
// @Param   active query bool false "Active flag"
// @Param   search query string false "Name, email or employee id"
// @Success 200 {object} util.Response{data=object} "Users"
// @Router /api/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("pageSize", "20"))

	filter := repository.UserFilter{
		Role:         model.UserRole(ctx.Query("role")),
		DepartmentID: ctx.Query("departmentId"),
		Search:       ctx.Query("search"),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		util.BadRequest(ctx, "role must be admin or teacher")
		return
	}
	if active := ctx.Query("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			util.BadRequest(ctx, "active must be true or false")
			return
		}
		filter.Active = &v
	}

	users, total, err := c.UserService.ListUsers(ctx.Request.Context(), filter, page, pageSize)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"items":    users,
		"total":    total,
		"page":     page,
		"pageSize": pageSize,
	})
}

// GetUser godoc
// @Summary Get a user
// @Tags Admin
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "User id"
// @Success 200 {object} util.Response{data=model.User} "User"
// @Failure 404 {object} util.Response "User not found"
// @Router /api/users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	user, err := c.UserService.GetUser(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// SetStatusRequest defines model for activating or deactivating a user
// swagger:model SetStatusRequest
type SetStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetStatus godoc
// @Summary Activate or deactivate a user
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "User id"
// @Param   body body SetStatusRequest true "Status"
// @Success 200 {object} util.Response "Updated"
// @Failure 404 {object} util.Response "User not found"
// @Router /api/users/{id}/status [put]
func (c *UserController) SetStatus(ctx *gin.Context) {
	actorID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "Please provide active")
		return
	}

	if err := c.UserService.SetActive(ctx.Request.Context(), actorID, ctx.Param("id"), *req.Active); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "User status updated", gin.H{"active": *req.Active})
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags Admin
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "User id"
// @Success 200 {object} util.Response "Deleted"
// @Failure 404 {object} util.Response "User not found"
// @Router /api/users/{id} [delete]
func (c *UserController) DeleteUser(ctx *gin.Context) {
	actorID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	if err := c.UserService.Delete(ctx.Request.Context(), actorID, ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMessage(ctx, "User removed", nil)
}

// Stats godoc
// @Summary Account counts by role
// @Tags Admin
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.RoleCounts} "Counts"
// @Router /api/users/stats [get]
func (c *UserController) Stats(ctx *gin.Context) {
	counts, err := c.UserService.CountByRole(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, counts)
}
