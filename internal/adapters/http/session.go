package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/studylog/core/internal/application/services"
	"github.com/studylog/core/internal/infrastructure/config"
	"github.com/studylog/core/internal/infrastructure/logger"
)

const sessionContextKey = "session_id"

// SessionMiddleware resolves the session cookie into a session id. Requests
// without a valid cookie get a new session and a fresh cookie.
func SessionMiddleware(sessions *services.SessionService, cfg config.SessionConfig, logger *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var sessionID string

			if cookie, err := c.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
				sid, err := sessions.ParseToken(cookie.Value)
				if err != nil {
					logger.LogSecurityEvent("invalid_session_cookie", c.RealIP(), map[string]interface{}{
						"error": err.Error(),
						"path":  c.Request().URL.Path,
					})
				} else {
					sessionID = sid
				}
			}

			if sessionID == "" {
				sessionID = sessions.NewSessionID()
				token, err := sessions.IssueToken(sessionID)
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, msgInternal).SetInternal(err)
				}
				c.SetCookie(&http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cfg.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   c.IsTLS(),
					SameSite: http.SameSiteLaxMode,
				})
			}

			c.Set(sessionContextKey, sessionID)
			return next(c)
		}
	}
}

// SessionID returns the id set by SessionMiddleware, or "" outside it
func SessionID(c echo.Context) string {
	sid, _ := c.Get(sessionContextKey).(string)
	return sid
}
