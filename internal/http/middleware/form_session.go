package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/mlcompare/internal/platform/ctxutil"
)

const (
	HeaderFormSession = "X-Form-Session"
	CookieFormSession = "mlcompare_form"
)

// FormSession resolves the training-form session from the X-Form-Session
// header or the mlcompare_form cookie, minting a new one when neither holds
// a valid uuid. The id is echoed back in both.
func FormSession(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderFormSession))
		if _, err := uuid.Parse(id); err != nil {
			id = ""
		}
		if id == "" {
			if v, err := c.Cookie(CookieFormSession); err == nil {
				if _, perr := uuid.Parse(v); perr == nil {
					id = v
				}
			}
		}
		if id == "" {
			id = uuid.New().String()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieFormSession, id, 0, "/", "", secureCookie, true)
		c.Writer.Header().Set(HeaderFormSession, id)
		c.Request = c.Request.WithContext(ctxutil.WithFormSession(c.Request.Context(), id))
		c.Next()
	}
}
