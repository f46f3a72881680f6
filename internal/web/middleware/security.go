package middleware

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/freekieb7/go-drawer/internal/config"
	"github.com/freekieb7/go-drawer/internal/web/response"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

// SecurityHeadersConfig allows customization of security headers
type SecurityHeadersConfig struct {
	EnableHSTS bool
	// HSTSMaxAge is in seconds.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	CSP                   string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

// SecurityHeadersFromConfig maps the SECURITY_* settings. HSTS is only sent in production.
func SecurityHeadersFromConfig(cfg config.Security, production bool) SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:            cfg.EnableHSTS && production,
		HSTSMaxAge:            cfg.HSTSMaxAge,
		HSTSIncludeSubdomains: cfg.HSTSIncludeSubdomains,
		CSP:                   cfg.ContentSecurityPolicy,
		ReferrerPolicy:        cfg.ReferrerPolicy,
		PermissionsPolicy:     cfg.PermissionsPolicy,
	}
}

// DefaultSecurityHeaders returns a secure default configuration
func DefaultSecurityHeaders() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		EnableHSTS:            true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		CSP:                   "default-src 'self'; img-src 'self' data: https:; connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "camera=(), geolocation=(), microphone=(), payment=(), usb=()",
	}
}

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

func SecurityHeadersWithConfig(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	hsts := ""
	if config.EnableHSTS {
		hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")

			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}
			if config.CSP != "" {
				h.Set("Content-Security-Policy", config.CSP)
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", config.PermissionsPolicy)
			}

			// Session state and storage data must never be cached.
			if isSensitiveEndpoint(r.URL.Path) {
				h.Set("Cache-Control", "no-cache, no-store, must-revalidate, private")
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// InputValidationMiddleware limits body size and the accepted content types.
func InputValidationMiddleware(maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

			if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && !isFileUpload(r) {
				if ct := r.Header.Get("Content-Type"); ct != "" && !allowedContentType(ct) {
					response.ErrorResponse(w, apperrors.InvalidRequestError("Unsupported Content-Type", nil), nil)
					return
				}
			}

			// Validate Host header to prevent Host header injection
			if r.Host == "" {
				response.ErrorResponse(w, apperrors.InvalidRequestError("Missing Host header", nil), nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isFileUpload reports whether r streams a file, whose body may be of any type.
func isFileUpload(r *http.Request) bool {
	return r.Method == http.MethodPut && r.URL.Path == "/api/files/content"
}

func allowedContentType(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/json", "application/octet-stream", "application/x-www-form-urlencoded":
		return true
	}
	return false
}

// SecureMiddleware creates the security chain shared by all routes
func SecureMiddleware(config SecurityHeadersConfig, maxBodyBytes int64) func(http.Handler) http.Handler {
	return Chain(
		SecurityHeadersWithConfig(config),
		InputValidationMiddleware(maxBodyBytes),
	)
}

// isSensitiveEndpoint reports whether responses for path must never be cached
func isSensitiveEndpoint(path string) bool {
	securitySensitivePaths := []string{
		"/auth/",
		"/api/",
	}

	for _, sensitivePath := range securitySensitivePaths {
		if strings.HasPrefix(path, sensitivePath) {
			return true
		}
	}
	return false
}
