package remote

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const sessionUser = "user"

// authHandler accepts a login session or HTTP basic auth.
type authHandler struct {
	User     string
	Password string
}

func (h *authHandler) valid(user, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(h.User))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(h.Password))
	return u&p == 1
}

// Required rejects requests without a session or valid basic auth.
func (h *authHandler) Required(c *gin.Context) {
	if h.User == "" {
		c.Next()
		return
	}
	if sessions.Default(c).Get(sessionUser) != nil {
		c.Next()
		return
	}
	if user, password, ok := c.Request.BasicAuth(); ok && h.valid(user, password) {
		c.Next()
		return
	}
	c.Header("WWW-Authenticate", `Basic realm="fishcam"`)
	c.AbortWithStatus(http.StatusUnauthorized)
}

func (h *authHandler) Login(c *gin.Context) {
	if h.User == "" {
		c.Status(http.StatusNoContent)
		return
	}
	if !h.valid(c.PostForm("username"), c.PostForm("password")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	session := sessions.Default(c)
	session.Set(sessionUser, h.User)
	if err := session.Save(); err != nil {
		slog.Error("Failed to save session", "error", err)
		c.String(http.StatusInternalServerError, "Failed to save session")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *authHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		slog.Error("Failed to save session", "error", err)
	}
	c.Status(http.StatusNoContent)
}
