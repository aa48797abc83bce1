package webhook

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"archi_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader  = "X-Webhook-API-Key"
	contextKeyID  = "webhookKeyID"
	contextOrigin = "webhookOrigin"
)

// KeyLookup resolves an active key by hash.
type KeyLookup interface {
	GetByHash(ctx context.Context, hash string) (APIKey, error)
}

// APIKeyAuth validates the X-Webhook-API-Key header and, when the key lists
// allowed domains, the Origin or Referer of the request.
func APIKeyAuth(keys KeyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if raw == "" {
			httpkit.Error(c, http.StatusUnauthorized, "missing API key", nil)
			c.Abort()
			return
		}

		key, err := keys.GetByHash(c.Request.Context(), HashKey(raw))
		if err != nil {
			httpkit.Error(c, http.StatusUnauthorized, "invalid API key", nil)
			c.Abort()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = c.GetHeader("Referer")
		}
		if len(key.AllowedDomains) > 0 && !isDomainAllowed(origin, key.AllowedDomains) {
			httpkit.Error(c, http.StatusForbidden, "domain not allowed", nil)
			c.Abort()
			return
		}

		c.Set(contextKeyID, key.ID)
		c.Set(contextOrigin, hostOf(origin))
		c.Next()
	}
}

// isDomainAllowed matches the origin host exactly or against "*.example.com".
func isDomainAllowed(origin string, allowed []string) bool {
	host := hostOf(origin)
	if host == "" {
		return false
	}
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimSpace(domain))
		switch {
		case domain == "*":
			return true
		case strings.HasPrefix(domain, "*."):
			if strings.HasSuffix(host, domain[1:]) || host == domain[2:] {
				return true
			}
		case host == domain:
			return true
		}
	}
	return false
}

func hostOf(origin string) string {
	if origin == "" {
		return ""
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
