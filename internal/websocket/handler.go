package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// TokenVerifier validates a handshake credential and returns the stable
// user id it belongs to.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// HandleWebSocket returns an HTTP handler that authenticates the handshake
// token, upgrades the connection, and runs it as a Hub client. A missing or
// invalid token is a hard rejection: the connection is never registered.
func HandleWebSocket(hub *Hub, verifier TokenVerifier, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		userID, err := verifier.Verify(token)
		if err != nil {
			logger.Warn("handshake rejected", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "invalid authentication token", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Mobile clients connect without a browser origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		logger.Info("connection established", "user_id", userID)
		client := NewClient(hub, conn, userID, logger)
		client.Run(r.Context())
	}
}
