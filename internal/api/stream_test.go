package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvcrn/studymate-cli/internal/auth"
	"github.com/dvcrn/studymate-cli/internal/session"
	"github.com/dvcrn/studymate-cli/internal/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryStreamDeltasAndTerminal(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	var deltas []string
	resp, err := h.client.QueryStream(context.Background(), "What is photosynthesis?", QueryOptions{NewChat: true}, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Photo", "synthesis"}, deltas)
	assert.Equal(t, "Photosynthesis converts light.", resp.Answer)
	assert.Equal(t, "chat-1", resp.SessionID)
	assert.Equal(t, "Biology", resp.SessionName)
	assert.True(t, resp.IsNewSession)
	assert.Equal(t, 2, resp.MessageCount)

	body := h.backend.LastQuery()
	assert.Equal(t, "What is photosynthesis?", body["question"])
	assert.Equal(t, true, body["new_chat"])
	assert.NotContains(t, body, "session_id")
}

func TestQueryStreamTerminalWithoutFullResponse(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.SetQueryFrames(`{"content":"Hel"}`, `{"content":"lo"}`, `{"done":true,"session_id":"chat-9"}`)

	resp, err := h.client.QueryStream(context.Background(), "hi", QueryOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Answer)
	assert.Equal(t, "chat-9", resp.SessionID)
}

func TestQueryStreamEndsEarly(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.SetQueryFrames(`{"content":"partial"}`)

	resp, err := h.client.QueryStream(context.Background(), "hi", QueryOptions{SessionID: "chat-3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "partial", resp.Answer)
	assert.Equal(t, "chat-3", resp.SessionID)
	assert.Equal(t, "chat-3", h.backend.LastQuery()["session_id"])
}

func TestQueryStreamErrorFrame(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.SetQueryFrames(`{"content":"a"}`, `{"error":true,"message":"LLM unavailable"}`, `{"content":"never"}`)

	var deltas []string
	_, err := h.client.QueryStream(context.Background(), "hi", QueryOptions{}, func(d string) { deltas = append(deltas, d) })
	require.Error(t, err)

	var streamErr *sse.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "LLM unavailable", streamErr.Message)
	assert.Equal(t, []string{"a"}, deltas)
}

func TestQueryStreamRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.Expire()

	resp, err := h.client.QueryStream(context.Background(), "again", QueryOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light.", resp.Answer)
	assert.Equal(t, 1, h.backend.RefreshCalls())
	assert.Equal(t, "again", h.backend.LastQuery()["question"])
}

func TestQueryStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"Vector store offline"}`))
	}))
	t.Cleanup(srv.Close)

	sess := session.New(nil, nil)
	require.NoError(t, sess.SetTokens("tok", "ref"))
	client := NewClient(srv.URL, auth.NewFetcher(sess, auth.NewHTTPRefresher(srv.URL, nil)), nil, nil)

	_, err := client.QueryStream(context.Background(), "q", QueryOptions{}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Equal(t, "Vector store offline", err.Error())
}

func TestQueryAndChatContext(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	resp, err := h.client.Query(ctx, "why?", QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "A: why?", resp.Answer)

	resp, err = h.client.QueryWithChatContext(ctx, "chat-7", "and then?")
	require.NoError(t, err)
	assert.Equal(t, "chat-7", resp.SessionID)
	assert.Equal(t, 4, resp.MessageCount)
}

func TestChatSessions(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	created, err := h.client.CreateChatSession(ctx, CreateChatSessionRequest{SessionName: "Bio"})
	require.NoError(t, err)
	assert.Equal(t, "chat-1", created.ID)
	assert.Equal(t, "rag", created.SessionType)
	assert.NotNil(t, created.DocumentIDs)

	list, err := h.client.ListChatSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	msg, err := h.client.RenameChatSession(ctx, created.ID, "Cells")
	require.NoError(t, err)
	assert.Equal(t, "Renamed to Cells", msg.Message)

	msgs, err := h.client.ChatMessages(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "limit=50", msgs[0].Content)

	added, err := h.client.AddChatMessage(ctx, created.ID, NewChatMessage{Content: "saved answer"})
	require.NoError(t, err)
	assert.Equal(t, "saved answer", added.Content)
	assert.Equal(t, created.ID, added.SessionID)

	_, err = h.client.DeleteChatSession(ctx, created.ID)
	require.NoError(t, err)
}

func TestGenerateFlashcardsStream(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	var statuses []string
	cards, err := h.client.GenerateFlashcardsStream(context.Background(), GenerateFlashcardsRequest{Topic: "cells", NumFlashcards: 2}, func(status, message string) {
		statuses = append(statuses, status)
	})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "What is ATP?", cards[0].Question)
	assert.Equal(t, "Nucleus", cards[1].Answer)
	assert.Equal(t, []string{"searching", "generating", "complete"}, statuses)
}

func TestGenerateQuizStreamFetchesByID(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	var messages []string
	quiz, err := h.client.GenerateQuizStream(ctx, GenerateQuizRequest{
		DocumentIDs: []string{"doc-1"}, NumQuestions: 5, TimeLimitMinutes: 10, Difficulty: "medium", Title: "Cells",
	}, func(status, message string) {
		if message != "" {
			messages = append(messages, message)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "quiz-1", quiz.ID)
	assert.Equal(t, "Cells", quiz.Title)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, []string{"Creating quiz..."}, messages)

	attempt, err := h.client.StartAttempt(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, AttemptInProgress, attempt.Status)

	ans, err := h.client.SubmitAnswer(ctx, attempt.ID, "q1", 1, 12)
	require.NoError(t, err)
	require.NotNil(t, ans.IsCorrect)
	assert.True(t, *ans.IsCorrect)

	done, err := h.client.CompleteAttempt(ctx, attempt.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, AttemptCompleted, done.Status)
	require.NotNil(t, done.Score)
	assert.Equal(t, 1, *done.Score)
	assert.Equal(t, 40, done.TimeSpentSeconds)

	attempts, err := h.client.QuizAttempts(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	second, err := h.client.StartAttempt(ctx, quiz.ID)
	require.NoError(t, err)
	require.NoError(t, h.client.AbandonAttempt(ctx, second.ID))
	got, err := h.client.GetAttempt(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, AttemptAbandoned, got.Status)

	quizzes, err := h.client.ListQuizzes(ctx)
	require.NoError(t, err)
	assert.Len(t, quizzes, 1)
	require.NoError(t, h.client.DeleteQuiz(ctx, quiz.ID))
}

func TestGenerateQuizStreamInlineQuiz(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"status\":\"generating\"}\n\ndata: {\"done\":true,\"quiz\":{\"id\":\"q-inline\",\"title\":\"T\"}}\n\n"))
	}))
	t.Cleanup(srv.Close)

	sess := session.New(nil, nil)
	require.NoError(t, sess.SetTokens("tok", "ref"))
	client := NewClient(srv.URL, auth.NewFetcher(sess, auth.NewHTTPRefresher(srv.URL, nil)), nil, nil)

	quiz, err := client.GenerateQuizStream(context.Background(), GenerateQuizRequest{DocumentIDs: []string{"d"}, NumQuestions: 1, TimeLimitMinutes: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "q-inline", quiz.ID)
}

func TestGenerateQuizStreamWithoutTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"status\":\"generating\"}\n\n"))
	}))
	t.Cleanup(srv.Close)

	sess := session.New(nil, nil)
	require.NoError(t, sess.SetTokens("tok", "ref"))
	client := NewClient(srv.URL, auth.NewFetcher(sess, auth.NewHTTPRefresher(srv.URL, nil)), nil, nil)

	_, err := client.GenerateQuizStream(context.Background(), GenerateQuizRequest{DocumentIDs: []string{"d"}, NumQuestions: 1, TimeLimitMinutes: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended before the quiz was saved")
}

func TestGenerateFlashcardsStreamWithoutTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"status\":\"searching\"}\n\n"))
	}))
	t.Cleanup(srv.Close)

	sess := session.New(nil, nil)
	require.NoError(t, sess.SetTokens("tok", "ref"))
	client := NewClient(srv.URL, auth.NewFetcher(sess, auth.NewHTTPRefresher(srv.URL, nil)), nil, nil)

	cards, err := client.GenerateFlashcardsStream(context.Background(), GenerateFlashcardsRequest{Topic: "cells", NumFlashcards: 2}, nil)
	require.Error(t, err)
	assert.Nil(t, cards)
	assert.Contains(t, err.Error(), "ended before the cards were generated")
}

func TestUploadDocuments(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "Chemistry.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 chem"), 0o600))

	out, err := h.client.UploadDocuments(ctx, []UploadFile{{Name: "/tmp/notes/Physics.pdf", Reader: strings.NewReader("physics")}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Physics.pdf", out[0].Filename)
	assert.Equal(t, "doc-3", out[0].DocumentID)

	out, err = h.client.UploadPaths(ctx, path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Chemistry.pdf", out[0].Filename)

	_, err = h.client.UploadPaths(ctx, filepath.Join(dir, "missing.pdf"))
	assert.ErrorContains(t, err, "missing.pdf")

	docs, err := h.client.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 4)

	del, err := h.client.DeleteDocument(ctx, "doc-3")
	require.NoError(t, err)
	assert.Equal(t, "doc-3", del.DocumentID)

	_, err = h.client.DeleteDocument(ctx, "doc-3")
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestUploadRefreshReplaysMultipartBody(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.backend.Expire()

	out, err := h.client.UploadDocuments(context.Background(), []UploadFile{{Name: "a.txt", Reader: strings.NewReader("hello")}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a.txt", out[0].Filename)
	assert.Equal(t, 1, h.backend.RefreshCalls())
}
