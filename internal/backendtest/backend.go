// Package backendtest runs an in-memory StudyMate backend for tests. It
// issues numbered tokens, can invalidate the current access token to force a
// refresh, and serves the streaming endpoints frame by frame.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Default account seeded by New.
const (
	Email    = "ada@example.com"
	Password = "correct-horse"
)

// Backend is a fake backend bound to an httptest.Server.
type Backend struct {
	*httptest.Server

	mu            sync.Mutex
	generation    int
	access        string
	refresh       string
	refreshCalls  int
	failRefresh   bool
	users         map[string]user
	documents     []map[string]any
	sessions      []map[string]any
	notes         map[string]map[string]any
	quizzes       map[string]map[string]any
	attempts      map[string]map[string]any
	requestIDs    []string
	queryFrames   []string
	frameDelay    time.Duration
	lastQueryBody map[string]any
}

type user struct {
	Password string         `json:"-"`
	Profile  map[string]any `json:"profile"`
}

// New starts a backend and closes it when t finishes.
func New(t testing.TB) *Backend {
	b := &Backend{
		users:    map[string]user{},
		notes:    map[string]map[string]any{},
		quizzes:  map[string]map[string]any{},
		attempts: map[string]map[string]any{},
	}
	b.users[Email] = user{Password: Password, Profile: map[string]any{
		"id": "user-1", "email": Email, "username": "ada", "created_at": "2026-01-01T00:00:00Z",
	}}
	b.documents = []map[string]any{
		{"id": "doc-1", "filename": "a.pdf", "original_filename": "Biology.pdf", "embedding_status": "completed", "file_size": 1024},
		{"id": "doc-2", "filename": "b.pdf", "original_filename": "History.pdf", "embedding_status": "processing", "file_size": 2048},
	}
	b.queryFrames = []string{
		`{"content":"Photo"}`,
		`{"content":""}`,
		`{"content":"synthesis"}`,
		`{"done":true,"full_response":"Photosynthesis converts light.","session_id":"chat-1","session_name":"Biology","is_new_session":true,"message_count":2}`,
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Close)
	return b
}

// Expire invalidates the current access token without touching the refresh
// token, as if it had timed out.
func (b *Backend) Expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = "expired"
}

// FailRefresh makes /auth/refresh reject every token.
func (b *Backend) FailRefresh(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = fail
}

// RefreshCalls reports how many times /auth/refresh was hit.
func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// AccessToken returns the token the backend currently accepts.
func (b *Backend) AccessToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.access
}

// RequestIDs returns every X-Request-ID seen, in order.
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

// SetQueryFrames replaces the data payloads /query-stream sends.
func (b *Backend) SetQueryFrames(frames ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queryFrames = frames
}

// SetFrameDelay makes /query-stream pause for d before each frame.
func (b *Backend) SetFrameDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameDelay = d
}

// LastQuery returns the body of the last /query-stream call.
func (b *Backend) LastQuery() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastQueryBody
}

func (b *Backend) issue() map[string]any {
	b.generation++
	b.access = fmt.Sprintf("access-%d", b.generation)
	b.refresh = fmt.Sprintf("refresh-%d", b.generation)
	return map[string]any{"access_token": b.access, "refresh_token": b.refresh, "token_type": "bearer"}
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.recordRequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": "StudyMate API is running"})
	})
	r.Post("/auth/signup", b.signUp)
	r.Post("/auth/signin", b.signIn)
	r.Post("/auth/refresh", b.refreshHandler)
	r.Post("/auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset link has been sent"})
	})
	r.Post("/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "reset-ok" {
			writeDetail(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
	})

	r.Group(func(r chi.Router) {
		r.Use(b.requireToken)

		r.Get("/me", b.me)
		r.Put("/me", b.updateMe)

		r.Get("/documents", b.listDocuments)
		r.Delete("/documents/{id}", b.deleteDocument)
		r.Get("/documents/{id}/view", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", `inline; filename="`+chi.URLParam(r, "id")+`.pdf"`)
			_, _ = w.Write([]byte("%PDF-1.4 fake"))
		})
		r.Post("/upload-multiple", b.upload)

		r.Post("/chat-sessions", b.createChatSession)
		r.Get("/chat-sessions", b.listChatSessions)
		r.Put("/chat-sessions/{id}/name", b.renameChatSession)
		r.Delete("/chat-sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Chat session deleted"})
		})
		r.Get("/chat-sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": "m1", "session_id": chi.URLParam(r, "id"), "role": "user", "content": "limit=" + strconv.Itoa(limit)},
			})
		})
		r.Post("/chat-sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusCreated, map[string]any{"id": "m2", "session_id": chi.URLParam(r, "id"), "role": "assistant", "content": body["content"]})
		})
		r.Post("/chat-sessions/{id}/query", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"answer": "in context", "session_id": chi.URLParam(r, "id"), "message_count": 4})
		})

		r.Post("/query", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusOK, map[string]any{"answer": "A: " + fmt.Sprint(body["question"]), "session_id": "chat-1", "is_new_session": false, "message_count": 2})
		})
		r.Post("/query-stream", b.queryStream)

		r.Post("/notes/generate", b.generateNotes)
		r.Get("/notes", b.listNotes)
		r.Get("/notes/{id}", b.getNote)
		r.Delete("/notes/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
		r.Post("/notes/{id}/ask", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"answer": "From note " + chi.URLParam(r, "id")})
		})
		r.Get("/notes/{id}/download/markdown", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/markdown")
			_, _ = w.Write([]byte("# Notes\n"))
		})
		r.Get("/notes/{id}/download/pdf", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 notes"))
		})

		r.Post("/flashcards/generate-stream", func(w http.ResponseWriter, r *http.Request) {
			writeStream(w, []string{
				`{"status":"searching","message":"Searching documents..."}`,
				`{"status":"generating","message":"Generating flashcards..."}`,
				`{"done":true,"status":"complete","flashcards":[{"question":"What is ATP?","answer":"Energy currency"},{"question":"Where is DNA?","answer":"Nucleus"}]}`,
			})
		})

		r.Post("/quizzes/generate-stream", b.generateQuiz)
		r.Get("/quizzes", b.listQuizzes)
		r.Get("/quizzes/{id}", b.getQuiz)
		r.Delete("/quizzes/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
		r.Get("/quizzes/{id}/attempts", b.listAttempts)
		r.Post("/quizzes/{id}/attempts", b.startAttempt)
		r.Get("/quiz-attempts/{id}", b.getAttempt)
		r.Post("/quiz-attempts/{id}/answers", b.submitAnswer)
		r.Post("/quiz-attempts/{id}/complete", b.completeAttempt)
		r.Post("/quiz-attempts/{id}/abandon", func(w http.ResponseWriter, r *http.Request) {
			b.setAttemptStatus(chi.URLParam(r, "id"), "abandoned")
			writeJSON(w, http.StatusOK, map[string]string{"message": "Attempt abandoned"})
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"user_id": "user-1", "total_documents": 2, "total_chat_sessions": 1,
				"documents_by_status": map[string]int{"completed": 1, "processing": 1, "failed": 0, "pending": 0},
			})
		})
		r.Get("/admin/stats", func(w http.ResponseWriter, r *http.Request) {
			writeDetail(w, http.StatusForbidden, "Admin access required")
		})
	})
	return r
}

func (b *Backend) recordRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			b.mu.Lock()
			b.requestIDs = append(b.requestIDs, id)
			b.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		valid := ok && token != "" && token == b.access
		b.mu.Unlock()
		if !valid {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) signUp(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[body["email"]]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	profile := map[string]any{"id": "user-" + uuid.NewString()[:8], "email": body["email"], "username": body["username"]}
	b.users[body["email"]] = user{Password: body["password"], Profile: profile}
	resp := b.issue()
	resp["user"] = profile
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) signIn(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[body["email"]]
	if !ok || u.Password != body["password"] {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	resp := b.issue()
	resp["user"] = u.Profile
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshCalls++
	if b.failRefresh || body["refresh_token"] == "" || body["refresh_token"] != b.refresh {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	resp := b.issue()
	resp["user"] = b.users[Email].Profile
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.users[Email].Profile)
}

func (b *Backend) updateMe(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.users[Email]
	for k, v := range body {
		u.Profile[k] = v
	}
	writeJSON(w, http.StatusOK, u.Profile)
}

func (b *Backend) listDocuments(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.documents)
}

func (b *Backend) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, d := range b.documents {
		if d["id"] == id {
			b.documents = append(b.documents[:i], b.documents[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"message": "Document deleted", "document_id": id, "embeddings_deleted": 12})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Document not found")
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Expected multipart form")
		return
	}
	var out []map[string]any
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		data, _ := io.ReadAll(f)
		f.Close()
		id := fmt.Sprintf("doc-%d", len(b.documents)+1)
		b.documents = append(b.documents, map[string]any{
			"id": id, "original_filename": fh.Filename, "embedding_status": "pending", "file_size": len(data),
		})
		out = append(out, map[string]any{
			"filename": fh.Filename, "stored_as": id + ".pdf", "document_id": id, "message": "Upload successful",
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createChatSession(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	s := map[string]any{
		"id":           fmt.Sprintf("chat-%d", len(b.sessions)+1),
		"session_name": body["session_name"],
		"session_type": body["session_type"],
		"document_ids": body["document_ids"],
		"is_active":    true,
	}
	b.sessions = append(b.sessions, s)
	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) listChatSessions(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.sessions
	if out == nil {
		out = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) renameChatSession(w http.ResponseWriter, r *http.Request) {
	var name string
	if err := json.NewDecoder(r.Body).Decode(&name); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Expected a JSON string")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Renamed to " + name})
}

func (b *Backend) queryStream(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.lastQueryBody = body
	frames := append([]string(nil), b.queryFrames...)
	delay := b.frameDelay
	b.mu.Unlock()
	writeDelayedStream(w, frames, delay)
}

func (b *Backend) generateNotes(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("note-%d", len(b.notes)+1)
	note := map[string]any{
		"id": id, "title": body["title"], "note_style": body["note_style"], "document_ids": body["document_ids"],
		"status": "generating",
	}
	b.notes[id] = note
	writeJSON(w, http.StatusOK, note)
}

func (b *Backend) listNotes(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []map[string]any{}
	for _, n := range b.notes {
		out = append(out, n)
	}
	writeJSON(w, http.StatusOK, out)
}

// getNote completes a generating note on first read.
func (b *Backend) getNote(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	note, ok := b.notes[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Note not found")
		return
	}
	writeJSON(w, http.StatusOK, note)
	if note["status"] == "generating" {
		note["status"] = "completed"
		note["note_text"] = "# Summary"
	}
}

func (b *Backend) generateQuiz(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	id := fmt.Sprintf("quiz-%d", len(b.quizzes)+1)
	b.quizzes[id] = map[string]any{
		"id": id, "title": body["title"], "difficulty": body["difficulty"], "status": "ready",
		"num_questions": body["num_questions"], "time_limit_minutes": body["time_limit_minutes"],
		"questions": []map[string]any{
			{"id": "q1", "question_number": 1, "question_text": "2+2?", "options": []string{"3", "4"}},
		},
	}
	b.mu.Unlock()
	writeStream(w, []string{
		`{"status":"creating","message":"Creating quiz..."}`,
		`{"status":"generating"}`,
		`{"done":true,"status":"complete","quiz_id":"` + id + `"}`,
	})
}

func (b *Backend) listQuizzes(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []map[string]any{}
	for _, q := range b.quizzes {
		out = append(out, q)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getQuiz(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.quizzes[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Quiz not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (b *Backend) listAttempts(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []map[string]any{}
	for _, a := range b.attempts {
		if a["quiz_id"] == quizID {
			out = append(out, a)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) startAttempt(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.quizzes[quizID]; !ok {
		writeDetail(w, http.StatusNotFound, "Quiz not found")
		return
	}
	id := fmt.Sprintf("attempt-%d", len(b.attempts)+1)
	a := map[string]any{"id": id, "quiz_id": quizID, "status": "in_progress", "answers": []map[string]any{}, "total_questions": 1}
	b.attempts[id] = a
	writeJSON(w, http.StatusOK, a)
}

func (b *Backend) getAttempt(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.attempts[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Attempt not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (b *Backend) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.attempts[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Attempt not found")
		return
	}
	selected, _ := body["selected_answer"].(float64)
	answer := map[string]any{
		"question_id":        body["question_id"],
		"selected_answer":    int(selected),
		"is_correct":         int(selected) == 1,
		"time_spent_seconds": body["time_spent_seconds"],
	}
	a["answers"] = append(a["answers"].([]map[string]any), answer)
	writeJSON(w, http.StatusOK, answer)
}

func (b *Backend) completeAttempt(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.attempts[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Attempt not found")
		return
	}
	correct := 0
	for _, ans := range a["answers"].([]map[string]any) {
		if ans["is_correct"] == true {
			correct++
		}
	}
	a["status"] = "completed"
	a["score"] = correct
	a["percentage_score"] = float64(correct) * 100
	a["time_spent_seconds"] = body["time_spent_seconds"]
	writeJSON(w, http.StatusOK, a)
}

func (b *Backend) setAttemptStatus(id, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.attempts[id]; ok {
		a["status"] = status
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeStream sends each payload as its own flushed SSE frame.
func writeStream(w http.ResponseWriter, frames []string) {
	writeDelayedStream(w, frames, 0)
}

func writeDelayedStream(w http.ResponseWriter, frames []string, delay time.Duration) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	for _, f := range frames {
		if delay > 0 {
			time.Sleep(delay)
		}
		_, _ = fmt.Fprintf(w, "data: %s\n\n", f)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
