package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/service"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
)

// CookiePolicy decides the flags of the session cookies. Production needs
// SameSite=None so the separately hosted frontend can send them.
type CookiePolicy struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (p CookiePolicy) set(ctx *gin.Context, name, value, path string, maxAge int) {
	ctx.SetSameSite(p.sameSite())
	ctx.SetCookie(name, value, maxAge, path, "", p.Secure, true)
}

func (p CookiePolicy) SetAccess(ctx *gin.Context, token string) {
	p.set(ctx, util.AccessCookie, token, util.AccessCookiePath, int(p.AccessTTL.Seconds()))
}

func (p CookiePolicy) SetRefresh(ctx *gin.Context, token string) {
	p.set(ctx, util.RefreshCookie, token, util.RefreshCookiePath, int(p.RefreshTTL.Seconds()))
}

func (p CookiePolicy) Clear(ctx *gin.Context) {
	p.set(ctx, util.AccessCookie, "", util.AccessCookiePath, -1)
	p.set(ctx, util.RefreshCookie, "", util.RefreshCookiePath, -1)
}

func clientInfo(ctx *gin.Context) service.ClientInfo {
	return service.ClientInfo{UserAgent: ctx.Request.UserAgent(), IP: ctx.ClientIP()}
}
