package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alchemorsel/pantrychef/internal/application/user"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantrychef/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
	"github.com/alchemorsel/pantrychef/pkg/validation"
	"github.com/alchemorsel/pantrychef/test/testutils"
)

func newAuthHandlers(t *testing.T, identity *testutils.MockIdentityService, origins []string) (*handlers.AuthHandlers, *user.AccountService) {
	log := zaptest.NewLogger(t)
	accounts := user.NewAccountService(identity, memory.NewDocumentStore(), validation.New(), user.NewSessionHub(4), log)
	return handlers.NewAuthHandlers(accounts, origins, log), accounts
}

func withSession(session *outbound.Session, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(middleware.WithSession(r.Context(), session)))
	})
}

type streamMessage struct {
	Session *outbound.Session `json:"session"`
}

func TestSessionStream_SendsCurrentThenSignOut(t *testing.T) {
	identity := new(testutils.MockIdentityService)
	session := testutils.Session(gofakeit.New(3))
	identity.On("SignOut", mock.Anything, session.Token).Return(nil).Once()

	h, accounts := newAuthHandlers(t, identity, []string{"*"})
	srv := httptest.NewServer(withSession(session, h.SessionStream))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.NotNil(t, first.Session)
	assert.Equal(t, session.UserID, first.Session.UserID)
	assert.Empty(t, first.Session.Token)

	require.NoError(t, accounts.SignOut(context.Background(), session))

	var second streamMessage
	require.NoError(t, conn.ReadJSON(&second))
	assert.Nil(t, second.Session)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestSessionStream_IgnoresOtherSessionsOfUser(t *testing.T) {
	identity := new(testutils.MockIdentityService)
	faker := gofakeit.New(5)
	laptop := testutils.Session(faker)
	phone := testutils.Session(faker)
	phone.UserID = laptop.UserID
	identity.On("SignOut", mock.Anything, phone.Token).Return(nil).Once()
	identity.On("SignOut", mock.Anything, laptop.Token).Return(nil).Once()

	h, accounts := newAuthHandlers(t, identity, []string{"*"})
	srv := httptest.NewServer(withSession(laptop, h.SessionStream))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.NotNil(t, first.Session)

	ctx := context.Background()
	require.NoError(t, accounts.SignOut(ctx, phone))
	_, err = accounts.UpdateProfile(ctx, laptop, user.UpdateProfileCommand{DisplayName: "Grace"})
	require.NoError(t, err)

	var renamed streamMessage
	require.NoError(t, conn.ReadJSON(&renamed))
	require.NotNil(t, renamed.Session, "the phone signing out does not end the laptop stream")
	assert.Equal(t, laptop.ID, renamed.Session.ID)
	assert.Equal(t, "Grace", renamed.Session.DisplayName)

	require.NoError(t, accounts.SignOut(ctx, laptop))

	var last streamMessage
	require.NoError(t, conn.ReadJSON(&last))
	assert.Nil(t, last.Session)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	identity.AssertExpectations(t)
}

func TestSessionStream_RejectsForeignOrigin(t *testing.T) {
	identity := new(testutils.MockIdentityService)
	session := testutils.Session(gofakeit.New(4))

	h, _ := newAuthHandlers(t, identity, []string{"https://pantrychef.app"})
	srv := httptest.NewServer(withSession(session, h.SessionStream))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProviderURL_GeneratesState(t *testing.T) {
	identity := new(testutils.MockIdentityService)
	identity.On("ProviderAuthURL", "github", mock.AnythingOfType("string")).
		Return("https://github.com/login/oauth/authorize?client_id=abc", nil).Once()

	h, _ := newAuthHandlers(t, identity, []string{"*"})
	r := chi.NewRouter()
	r.Get("/auth/providers/{provider}/url", h.ProviderURL)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/providers/github/url", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Data["url"], "github.com")
	assert.Len(t, body.Data["state"], 36)
	identity.AssertExpectations(t)
}

func TestSignUp_EmptyBody(t *testing.T) {
	h, _ := newAuthHandlers(t, new(testutils.MockIdentityService), []string{"*"})

	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest(http.MethodPost, "/auth/signup", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request body is required")
}
