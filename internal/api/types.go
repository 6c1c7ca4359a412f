package api

import (
	"encoding/json"

	"github.com/dvcrn/studymate-cli/internal/auth"
)

// AuthResponse is returned by sign-in and sign-up.
type AuthResponse = auth.TokenResponse

type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the fields PUT /me accepts. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Username        *string `json:"username,omitempty"`
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	ProfileImageURL *string `json:"profile_image_url,omitempty"`
}

// MessageResponse is the generic {"message": ...} acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// Document embedding states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Document struct {
	ID                   string   `json:"id"`
	Filename             string   `json:"filename"`
	OriginalFilename     string   `json:"original_filename"`
	FileSize             int64    `json:"file_size"`
	FileType             string   `json:"file_type"`
	MimeType             string   `json:"mime_type"`
	StoragePath          string   `json:"storage_path"`
	EmbeddingStatus      string   `json:"embedding_status"`
	ChromaCollectionName string   `json:"chroma_collection_name"`
	ChromaDocumentIDs    []string `json:"chroma_document_ids,omitempty"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
	UserID               string   `json:"user_id"`
}

type UploadResponse struct {
	Filename   string `json:"filename"`
	StoredAs   string `json:"stored_as"`
	TaskID     string `json:"task_id,omitempty"`
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

type DeleteDocumentResponse struct {
	Message           string `json:"message"`
	DocumentID        string `json:"document_id"`
	EmbeddingsDeleted int    `json:"embeddings_deleted"`
}

// Download is a binary response body.
type Download struct {
	Data        []byte
	ContentType string
	Filename    string
}

type ChatSession struct {
	ID           string   `json:"id"`
	SessionName  string   `json:"session_name"`
	SessionType  string   `json:"session_type"`
	IsActive     bool     `json:"is_active"`
	MessageCount int      `json:"message_count"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	UserID       string   `json:"user_id"`
	DocumentIDs  []string `json:"document_ids"`
}

type CreateChatSessionRequest struct {
	SessionName string   `json:"session_name"`
	SessionType string   `json:"session_type"`
	DocumentIDs []string `json:"document_ids"`
}

// SourceDocument is a retrieval hit attached to an answer. Its shape is
// loosely defined by the backend.
type SourceDocument map[string]any

type ChatMessage struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	Role            string           `json:"role,omitempty"`
	Content         string           `json:"content"`
	TokensUsed      int              `json:"tokens_used,omitempty"`
	SourceDocuments []SourceDocument `json:"source_documents,omitempty"`
	RetrievalQuery  string           `json:"retrieval_query,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

type NewChatMessage struct {
	Content         string           `json:"content"`
	TokensUsed      int              `json:"tokens_used,omitempty"`
	SourceDocuments []SourceDocument `json:"source_documents,omitempty"`
	RetrievalQuery  string           `json:"retrieval_query,omitempty"`
}

// QueryOptions scopes a question to an existing chat session or forces a new
// one.
type QueryOptions struct {
	SessionID string `json:"session_id,omitempty"`
	NewChat   bool   `json:"new_chat,omitempty"`
}

type queryRequest struct {
	Question string `json:"question"`
	QueryOptions
}

type QueryResponse struct {
	Answer       string `json:"answer"`
	SessionID    string `json:"session_id"`
	SessionName  string `json:"session_name"`
	IsNewSession bool   `json:"is_new_session"`
	MessageCount int    `json:"message_count"`
}

// Note generation states.
const (
	NoteStatusGenerating = "generating"
	NoteStatusCompleted  = "completed"
	NoteStatusFailed     = "failed"
)

type Note struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	NoteStyle   string          `json:"note_style"`
	Status      string          `json:"status"`
	NoteText    string          `json:"note_text,omitempty"`
	DocumentIDs []string        `json:"document_ids"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

type GenerateNotesRequest struct {
	DocumentIDs []string `json:"document_ids"`
	NoteStyle   string   `json:"note_style,omitempty"`
	UserPrompt  string   `json:"user_prompt,omitempty"`
	Title       string   `json:"title,omitempty"`
}

type NoteAnswer struct {
	Answer string `json:"answer"`
}

type Flashcard struct {
	ID       string `json:"id,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type GenerateFlashcardsRequest struct {
	Topic         string   `json:"topic,omitempty"`
	DocumentIDs   []string `json:"document_ids,omitempty"`
	NumFlashcards int      `json:"num_flashcards,omitempty"`
}

type Question struct {
	ID             string   `json:"id"`
	QuestionNumber int      `json:"question_number"`
	QuestionText   string   `json:"question_text"`
	Options        []string `json:"options"`
	CorrectAnswer  *int     `json:"correct_answer,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
}

type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Difficulty       string     `json:"difficulty"`
	DocumentIDs      []string   `json:"document_ids"`
	NumQuestions     int        `json:"num_questions"`
	Questions        []Question `json:"questions,omitempty"`
	Status           string     `json:"status"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	CreatedAt        string     `json:"created_at"`
}

type GenerateQuizRequest struct {
	DocumentIDs      []string `json:"document_ids"`
	NumQuestions     int      `json:"num_questions"`
	TimeLimitMinutes int      `json:"time_limit_minutes"`
	Difficulty       string   `json:"difficulty,omitempty"`
	Title            string   `json:"title,omitempty"`
}

type Answer struct {
	QuestionID       string `json:"question_id"`
	SelectedAnswer   int    `json:"selected_answer"`
	IsCorrect        *bool  `json:"is_correct,omitempty"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty"`
}

// Attempt states.
const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
	AttemptAbandoned  = "abandoned"
)

type QuizAttempt struct {
	ID               string   `json:"id"`
	QuizID           string   `json:"quiz_id,omitempty"`
	Answers          []Answer `json:"answers"`
	Status           string   `json:"status"`
	Score            *int     `json:"score,omitempty"`
	PercentageScore  *float64 `json:"percentage_score,omitempty"`
	TotalQuestions   int      `json:"total_questions"`
	StartedAt        string   `json:"started_at"`
	CompletedAt      string   `json:"completed_at,omitempty"`
	TimeSpentSeconds int      `json:"time_spent_seconds,omitempty"`
}

type UserStats struct {
	UserID            string `json:"user_id"`
	TotalDocuments    int    `json:"total_documents"`
	TotalChatSessions int    `json:"total_chat_sessions"`
	DocumentsByStatus struct {
		Completed  int `json:"completed"`
		Processing int `json:"processing"`
		Failed     int `json:"failed"`
		Pending    int `json:"pending"`
	} `json:"documents_by_status"`
}

type AdminStats struct {
	TotalUsers     int    `json:"total_users"`
	TotalDocuments int    `json:"total_documents"`
	Status         string `json:"status"`
}

type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
