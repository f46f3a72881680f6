package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// NoCache creates middleware that prevents caching
func NoCache() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
			next.ServeHTTP(w, r)
		})
	}
}

// ETag tags successful GET responses with a hash of their body and answers a
// matching If-None-Match with 304. The dashboard polls app data and folder
// listings; unchanged ones cost no body.
func ETag() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			capture := &responseCapture{header: http.Header{}, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			for key, values := range capture.header {
				w.Header()[key] = values
			}

			if capture.statusCode != http.StatusOK {
				w.WriteHeader(capture.statusCode)
				_, _ = w.Write(capture.body.Bytes())
				return
			}

			sum := sha256.Sum256(capture.body.Bytes())
			etag := `"` + hex.EncodeToString(sum[:16]) + `"`
			w.Header().Set("ETag", etag)
			w.Header().Add("Vary", "Cookie")

			if etagMatches(r.Header.Get("If-None-Match"), etag) {
				w.Header().Del("Content-Type")
				w.Header().Del("Content-Length")
				w.WriteHeader(http.StatusNotModified)
				return
			}

			w.WriteHeader(http.StatusOK)
			if r.Method != http.MethodHead {
				_, _ = w.Write(capture.body.Bytes())
			}
		})
	}
}

func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// responseCapture buffers a response so it can be hashed before sending.
type responseCapture struct {
	header      http.Header
	body        bytes.Buffer
	statusCode  int
	wroteHeader bool
}

func (rc *responseCapture) Header() http.Header {
	return rc.header
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.wroteHeader = true
	return rc.body.Write(b)
}

func (rc *responseCapture) WriteHeader(code int) {
	if rc.wroteHeader {
		return
	}
	rc.wroteHeader = true
	rc.statusCode = code
}
