package httphandler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v82/github"
)

const maxSignedBody = 1 << 20

// requireSignature admits requests whose body carries a valid
// X-Hub-Signature-256 HMAC of secret, the same scheme GitHub uses for
// webhooks. Bodies are always treated as JSON. With an empty secret every
// request is refused.
func requireSignature(secret []byte, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(secret) == 0 {
			writeProblem(w, r, http.StatusForbidden, "signing_not_configured", "request signing is not configured")
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxSignedBody)
		payload, err := github.ValidatePayloadFromBody("application/json", body,
			r.Header.Get(github.SHA256SignatureHeader), secret)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeProblem(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
				return
			}
			logger.Warn("rejected unsigned request", "path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
			writeProblem(w, r, http.StatusUnauthorized, "invalid_signature", "missing or invalid "+github.SHA256SignatureHeader+" header")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(payload))
		next(w, r)
	}
}
