package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/dvcrn/studymate-cli/internal/backendtest"
	"github.com/dvcrn/studymate-cli/internal/credentials"
	"github.com/dvcrn/studymate-cli/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	client  *Client
	backend *backendtest.Backend
	session *session.Session
	store   *credentials.MemoryStore
	expired atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{backend: backendtest.New(t), store: credentials.NewMemoryStore()}
	h.session = session.New(h.store, nil)
	fetcher := auth.NewFetcher(h.session, auth.NewHTTPRefresher(h.backend.URL, nil),
		auth.WithSessionExpiredHook(func() { h.expired.Add(1) }))
	h.client = NewClient(h.backend.URL+"/", fetcher, nil, nil)
	return h
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	_, err := h.client.SignIn(context.Background(), backendtest.Email, backendtest.Password)
	require.NoError(t, err)
}

func TestSignInStoresSession(t *testing.T) {
	h := newHarness(t)

	user, err := h.client.SignIn(context.Background(), backendtest.Email, backendtest.Password)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, h.backend.URL, h.client.BaseURL())

	assert.True(t, h.session.IsAuthenticated())
	assert.Equal(t, "access-1", h.session.AccessToken())
	assert.Equal(t, "refresh-1", h.session.RefreshToken())

	stored, ok, err := h.store.Get(credentials.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "access-1", stored)
}

func TestSignInWrongPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.SignIn(context.Background(), backendtest.Email, "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, err.Error(), "Invalid email or password")
	assert.False(t, h.session.IsAuthenticated())
}

func TestSignUpAndDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	user, err := h.client.SignUp(ctx, SignUpRequest{Email: "new@example.com", Password: "longenough", Username: "newbie"})
	require.NoError(t, err)
	assert.Equal(t, "newbie", user.Username)
	assert.Equal(t, "newbie", h.session.User().Username)

	_, err = h.client.SignUp(ctx, SignUpRequest{Email: "new@example.com", Password: "longenough", Username: "again"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Equal(t, "Email already registered", err.Error())
}

func TestValidationErrorsSendNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	sess := session.New(nil, nil)
	client := NewClient(srv.URL, auth.NewFetcher(sess, auth.NewHTTPRefresher(srv.URL, nil)), nil, nil)
	ctx := context.Background()

	_, err := client.SignIn(ctx, "not-an-email", "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid email format", verr.Fields["email"])
	assert.Equal(t, "Password is required", verr.Fields["password"])

	_, err = client.SignUp(ctx, SignUpRequest{Email: "a@b.co", Password: "short"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "username")

	_, err = client.ResetPassword(ctx, "tok", "longenough", "different")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Passwords do not match", verr.Fields["confirm_password"])

	_, err = client.GenerateQuizStream(ctx, GenerateQuizRequest{DocumentIDs: []string{"d"}, NumQuestions: 0, TimeLimitMinutes: 10}, nil)
	require.ErrorAs(t, err, &verr)

	_, err = client.GenerateNotes(ctx, GenerateNotesRequest{})
	require.ErrorAs(t, err, &verr)

	_, err = client.UploadDocuments(ctx, nil)
	require.ErrorAs(t, err, &verr)

	assert.Zero(t, hits.Load())
}

func TestErrorDetailParsing(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", http.StatusNotFound, `{"detail":"Document not found"}`, "Document not found"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","email"],"msg":"field required"},{"msg":"value is not a valid email"}]}`, "field required; value is not a valid email"},
		{"no json", http.StatusInternalServerError, `Internal Server Error`, "HTTP error! status: 500"},
		{"no detail", http.StatusBadGateway, `{"error":"upstream"}`, "HTTP error! status: 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)
			client := NewClient(srv.URL, auth.NewFetcher(session.New(nil, nil), auth.NewHTTPRefresher(srv.URL, nil)), nil, nil)

			_, err := client.Health(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestStatusCodeOfOtherErrors(t *testing.T) {
	assert.Zero(t, StatusCode(errors.New("boom")))
	assert.Zero(t, StatusCode(nil))
}

func TestExpiredTokenRefreshesTransparently(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.Expire()

	docs, err := h.client.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	assert.Equal(t, 1, h.backend.RefreshCalls())
	assert.Equal(t, "access-2", h.session.AccessToken())
	assert.Equal(t, "refresh-2", h.session.RefreshToken())
	assert.Zero(t, h.expired.Load())
}

func TestRefreshFailureSignsOut(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.Expire()
	h.backend.FailRefresh(true)

	_, err := h.client.UserStats(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)
	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, int32(1), h.expired.Load())
}

func TestMeAndUpdateProfile(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	me, err := h.client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, backendtest.Email, me.Email)

	name := "Ada"
	updated, err := h.client.UpdateProfile(ctx, ProfileUpdate{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Ada", h.session.User().FirstName)
}

func TestSignOutClearsStore(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	require.NoError(t, h.client.SignOut())
	assert.False(t, h.session.IsAuthenticated())
	_, ok, err := h.store.Get(credentials.KeyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.client.ListDocuments(context.Background())
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg, err := h.client.ForgotPassword(ctx, backendtest.Email)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Message)

	_, err = h.client.ResetPassword(ctx, "stale", "longenough", "longenough")
	assert.Equal(t, "Invalid or expired reset token", err.Error())

	msg, err = h.client.ResetPassword(ctx, "reset-ok", "longenough", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "Password updated", msg.Message)
}

func TestHealthIsAnonymous(t *testing.T) {
	h := newHarness(t)

	health, err := h.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestRequestIDSentOnEveryCall(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	_, err := h.client.ListDocuments(context.Background())
	require.NoError(t, err)

	ids := h.backend.RequestIDs()
	require.NotEmpty(t, ids)
	assert.NotEmpty(t, ids[len(ids)-1])
}

func TestWaitForNote(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	note, err := h.client.GenerateNotes(ctx, GenerateNotesRequest{DocumentIDs: []string{"doc-1"}, Title: "Bio", NoteStyle: "summary"})
	require.NoError(t, err)
	assert.Equal(t, NoteStatusGenerating, note.Status)

	done, err := h.client.WaitForNote(ctx, note.ID, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, NoteStatusCompleted, done.Status)
	assert.Equal(t, "# Summary", done.NoteText)

	notes, err := h.client.ListNotes(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	answer, err := h.client.AskNote(ctx, note.ID, "what?")
	require.NoError(t, err)
	assert.Equal(t, "From note "+note.ID, answer.Answer)

	require.NoError(t, h.client.DeleteNote(ctx, note.ID))
}

func TestDownloads(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	md, err := h.client.DownloadNoteMarkdown(ctx, "note-1")
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n", string(md.Data))
	assert.Equal(t, "text/markdown", md.ContentType)

	pdf, err := h.client.DownloadNotePDF(ctx, "note-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf.Data), "%PDF"))

	doc, err := h.client.DownloadDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1.pdf", doc.Filename)
	assert.Equal(t, h.backend.URL+"/documents/doc-1/view", h.client.DocumentViewURL("doc-1"))
}

func TestFilenameFromDisposition(t *testing.T) {
	assert.Equal(t, "a b.pdf", filenameFromDisposition(`attachment; filename="a b.pdf"`))
	assert.Equal(t, "x.md", filenameFromDisposition(`inline;filename=x.md`))
	assert.Empty(t, filenameFromDisposition(""))
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	stats, err := h.client.UserStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 1, stats.DocumentsByStatus.Processing)

	_, err = h.client.AdminStats(ctx)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
}
