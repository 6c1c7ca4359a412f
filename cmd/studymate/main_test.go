package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvcrn/studymate-cli/internal/backendtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCLI struct {
	backend *backendtest.Backend
	dir     string
}

// newTestCLI points the CLI at a fake backend with a throwaway sqlite
// session so state survives between commands like it does on disk.
func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	backend := backendtest.New(t)
	dir := t.TempDir()
	for _, name := range []string{"NEXT_PUBLIC_API_URL", "STUDYMATE_API_TIMEOUT", "LOG_LEVEL", "STUDYMATE_LISTEN", "PORT", "ADMIN_API_KEY"} {
		t.Setenv(name, "")
	}
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("STUDYMATE_API_URL", backend.URL)
	t.Setenv("STUDYMATE_SESSION_STORE", "sqlite")
	t.Setenv("STUDYMATE_SESSION_PATH", filepath.Join(dir, "session.db"))
	t.Setenv("STUDYMATE_LOG_LEVEL", "error")
	t.Chdir(dir)
	return &testCLI{backend: backend, dir: dir}
}

func (tc *testCLI) run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c := &cli{stdin: strings.NewReader(stdin), stdout: &stdout, stderr: &stderr, log: zerolog.Nop()}
	code := c.run(context.Background(), args)
	return code, stdout.String(), stderr.String()
}

func (tc *testCLI) signIn(t *testing.T) {
	t.Helper()
	code, out, errOut := tc.run(t, backendtest.Password+"\n", "signin", "-email", backendtest.Email)
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "Signed in as ada")
}

func TestHelpAndUnknown(t *testing.T) {
	tc := newTestCLI(t)

	code, _, errOut := tc.run(t, "")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Usage: studymate")

	code, _, errOut = tc.run(t, "", "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)

	code, out, _ := tc.run(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "studymate dev\n", out)

	code, _, errOut = tc.run(t, "", "docs")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing subcommand (delete, download, list, upload)")
}

func TestSignInPersistsSession(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)

	code, out, _ := tc.run(t, "", "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "signed in as ada")
	assert.Contains(t, out, "unknown (opaque token)")

	code, out, _ = tc.run(t, "", "whoami")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ada <"+backendtest.Email+">")

	code, out, _ = tc.run(t, "", "signout")
	assert.Equal(t, 0, code)
	assert.Equal(t, "Signed out\n", out)

	code, out, _ = tc.run(t, "", "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "signed out")
}

func TestSignInValidation(t *testing.T) {
	tc := newTestCLI(t)

	code, _, errOut := tc.run(t, "\n", "signin", "-email", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Invalid email format")
	assert.Contains(t, errOut, "Password is required")
}

func TestNotSignedInHint(t *testing.T) {
	tc := newTestCLI(t)

	code, _, errOut := tc.run(t, "", "docs", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not signed in")
}

func TestSessionExpiredHook(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)
	tc.backend.Expire()
	tc.backend.FailRefresh(true)

	code, _, errOut := tc.run(t, "", "stats")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Your session has expired")
	assert.NotContains(t, errOut, "not signed in")
}

func TestAskStreamsAnswer(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)

	code, out, errOut := tc.run(t, "", "ask", "-new", "What", "is", "photosynthesis?")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Photosynthesis\n", out)
	assert.Contains(t, errOut, "Started chat Biology (chat-1)")
	assert.Equal(t, "What is photosynthesis?", tc.backend.LastQuery()["question"])

	code, _, errOut = tc.run(t, "", "ask")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "missing question")
}

func TestAskRefreshesExpiredToken(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)
	tc.backend.Expire()

	code, _, errOut := tc.run(t, "", "ask", "hi")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, 1, tc.backend.RefreshCalls())

	// the refreshed tokens were persisted for the next invocation
	code, _, errOut = tc.run(t, "", "docs", "list")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, 1, tc.backend.RefreshCalls())
}

func TestDocsCommands(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)

	path := filepath.Join(tc.dir, "Physics.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF physics"), 0o600))

	code, out, errOut := tc.run(t, "", "docs", "upload", path)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Physics.pdf -> doc-3")

	code, out, _ = tc.run(t, "", "docs", "list")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Biology.pdf")
	assert.Contains(t, out, "Physics.pdf")

	code, out, errOut = tc.run(t, "", "docs", "download", "doc-1")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Saved doc-1.pdf")
	data, err := os.ReadFile(filepath.Join(tc.dir, "doc-1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))

	code, out, _ = tc.run(t, "", "docs", "delete", "doc-2")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "12 embeddings removed")
}

func TestNotesCommands(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)

	code, out, errOut := tc.run(t, "", "notes", "generate", "-docs", "doc-1", "-wait=false")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "note-1\n", out)

	code, out, _ = tc.run(t, "", "notes", "list")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "note-1")

	code, out, _ = tc.run(t, "", "notes", "ask", "note-1", "what", "matters?")
	assert.Equal(t, 0, code)
	assert.Equal(t, "From note note-1\n", out)

	code, out, _ = tc.run(t, "", "notes", "download", "-o", "-", "note-1")
	assert.Equal(t, 0, code)
	assert.Equal(t, "# Notes\n", out)

	code, _, errOut = tc.run(t, "", "notes", "generate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Select at least one document")
}

func TestFlashcards(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)

	code, out, errOut := tc.run(t, "", "flashcards", "-topic", "cells", "-n", "2")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "1. Q: What is ATP?\n   A: Energy currency")
	assert.Contains(t, errOut, "Generating flashcards...")
}

func TestQuizFlow(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)

	code, out, errOut := tc.run(t, "", "quiz", "generate", "-docs", "doc-1", "-n", "1", "-minutes", "5", "-title", "Math")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Created quiz quiz-1: Math (1 questions)")

	code, out, errOut = tc.run(t, "2\n", "quiz", "take", "quiz-1")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "1. 2+2?")
	assert.Contains(t, out, "   correct")
	assert.Contains(t, out, "completed, score 1/1 (100%)")

	code, out, _ = tc.run(t, "q\n", "quiz", "take", "quiz-1")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Attempt abandoned")

	code, out, _ = tc.run(t, "", "quiz", "attempts", "quiz-1")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "abandoned")
	assert.Contains(t, out, "completed")

	code, _, errOut = tc.run(t, "", "quiz", "generate", "-docs", "doc-1", "-n", "99")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "between 1 and 50")
}

func TestStatsAndHealth(t *testing.T) {
	tc := newTestCLI(t)

	code, out, _ := tc.run(t, "", "health")
	assert.Equal(t, 0, code)
	assert.Equal(t, "healthy: StudyMate API is running\n", out)

	tc.signIn(t)
	code, out, _ = tc.run(t, "", "stats")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Documents:     2 (1 ready, 1 processing, 0 pending, 0 failed)")

	code, _, errOut := tc.run(t, "", "stats", "-admin")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Admin access required")
}

func TestChatsCommands(t *testing.T) {
	tc := newTestCLI(t)
	tc.signIn(t)

	code, out, _ := tc.run(t, "", "chats", "messages", "-limit", "5", "chat-1")
	assert.Equal(t, 0, code)
	assert.Equal(t, "[user] limit=5\n", out)

	code, out, _ = tc.run(t, "", "chats", "rename", "chat-1", "Cell", "biology")
	assert.Equal(t, 0, code)
	assert.Equal(t, "Renamed to Cell biology\n", out)
}

func TestPasswordCommands(t *testing.T) {
	tc := newTestCLI(t)

	code, out, _ := tc.run(t, "", "password", "forgot", "-email", backendtest.Email)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "reset link")

	code, out, errOut := tc.run(t, "longenough\nlongenough\n", "password", "reset", "-token", "reset-ok")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Password updated\n", out)

	code, _, errOut = tc.run(t, "longenough\nother\n", "password", "reset", "-token", "reset-ok")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Passwords do not match")
}

func TestSignUp(t *testing.T) {
	tc := newTestCLI(t)

	code, out, errOut := tc.run(t, "weakpass\n", "signup", "-email", "grace@example.com", "-username", "grace")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "Welcome, grace! You are signed in.\n", out)
	assert.Contains(t, errOut, "Weak password")

	code, out, _ = tc.run(t, "", "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "signed in as grace")
}
