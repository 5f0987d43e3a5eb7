package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantrychef/internal/application/user"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// AuthHandlers handles sign-up, sign-in and session endpoints
type AuthHandlers struct {
	accounts *user.AccountService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewAuthHandlers creates the authentication handlers. allowedOrigins
// guards the websocket handshake; "*" accepts any origin.
func NewAuthHandlers(accounts *user.AccountService, allowedOrigins []string, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		accounts: accounts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.Named("auth-api"),
	}
}

// ProviderCallbackRequest carries the authorization code of a provider redirect
type ProviderCallbackRequest struct {
	Code string `json:"code"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var cmd user.SignUpCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session, err := h.accounts.SignUp(r.Context(), cmd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, session)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var cmd user.LoginCommand
	if err := decodeJSON(r, &cmd); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session, err := h.accounts.SignIn(r.Context(), cmd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, session)
}

// ProviderURL handles GET /api/v1/auth/providers/{provider}/url
func (h *AuthHandlers) ProviderURL(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		state = uuid.NewString()
	}

	url, err := h.accounts.ProviderAuthURL(chi.URLParam(r, "provider"), state)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, map[string]string{"url": url, "state": state})
}

// ProviderCallback handles POST /api/v1/auth/providers/{provider}/callback
func (h *AuthHandlers) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	var req ProviderCallbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	session, err := h.accounts.SignInWithProvider(r.Context(), chi.URLParam(r, "provider"), req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, session)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.accounts.SignOut(r.Context(), session); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, nil)
}

// Session handles GET /api/v1/auth/session; data is null when signed out
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeData(w, h.logger, http.StatusOK, nil)
		return
	}
	writeData(w, h.logger, http.StatusOK, session)
}

// SessionStream handles GET /api/v1/auth/session/stream. The current
// session is sent first, then every change; a null message means signed out
// and ends the stream.
func (h *AuthHandlers) SessionStream(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.accounts.Subscribe(session.ID)
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	go h.readUntilClosed(conn, stop)

	if !h.send(conn, session) {
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if !h.send(conn, update) {
				return
			}
			if update == nil {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
					time.Now().Add(streamWriteWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *AuthHandlers) send(conn *websocket.Conn, session *outbound.Session) bool {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(sessionMessage{Session: redact(session)}); err != nil {
		h.logger.Debug("Session stream write failed", zap.Error(err))
		return false
	}
	return true
}

// readUntilClosed drains client frames so pongs and close frames are handled
func (h *AuthHandlers) readUntilClosed(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type sessionMessage struct {
	Session *outbound.Session `json:"session"`
}

// redact drops the token from streamed sessions
func redact(session *outbound.Session) *outbound.Session {
	if session == nil {
		return nil
	}
	copied := *session
	copied.Token = ""
	return &copied
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
