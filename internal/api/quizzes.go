package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dvcrn/studymate-cli/internal/sse"
)

// GenerateQuizStream streams quiz generation and returns the saved quiz. Terminal
// frames carry either the quiz itself or only its id, in which case the quiz
// is fetched.
func (c *Client) GenerateQuizStream(ctx context.Context, req GenerateQuizRequest, onProgress func(status, message string)) (*Quiz, error) {
	if err := ValidateQuizRequest(req); err != nil {
		return nil, err
	}
	res, err := c.stream(ctx, "/quizzes/generate-stream", req, sse.Handler{OnProgress: onProgress})
	if err != nil {
		return nil, err
	}
	if !res.Done {
		return nil, fmt.Errorf("quiz stream ended before the quiz was saved")
	}

	var payload struct {
		Quiz   *Quiz  `json:"quiz"`
		QuizID string `json:"quiz_id"`
	}
	if err := res.Decode(&payload); err != nil {
		return nil, err
	}
	switch {
	case payload.Quiz != nil && payload.Quiz.ID != "":
		return payload.Quiz, nil
	case payload.QuizID != "":
		return c.GetQuiz(ctx, payload.QuizID)
	default:
		return nil, fmt.Errorf("quiz stream completed without a quiz id")
	}
}

func (c *Client) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	var out []Quiz
	if err := c.do(ctx, http.MethodGet, "/quizzes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	var out Quiz
	if err := c.do(ctx, http.MethodGet, "/quizzes/"+pathID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteQuiz(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/quizzes/"+pathID(id), nil, nil)
}

func (c *Client) QuizAttempts(ctx context.Context, quizID string) ([]QuizAttempt, error) {
	var out []QuizAttempt
	if err := c.do(ctx, http.MethodGet, "/quizzes/"+pathID(quizID)+"/attempts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartAttempt(ctx context.Context, quizID string) (*QuizAttempt, error) {
	var out QuizAttempt
	if err := c.do(ctx, http.MethodPost, "/quizzes/"+pathID(quizID)+"/attempts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAttempt(ctx context.Context, attemptID string) (*QuizAttempt, error) {
	var out QuizAttempt
	if err := c.do(ctx, http.MethodGet, "/quiz-attempts/"+pathID(attemptID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer records the option index chosen for one question.
func (c *Client) SubmitAnswer(ctx context.Context, attemptID, questionID string, answerIndex, timeSpentSeconds int) (*Answer, error) {
	body := Answer{QuestionID: questionID, SelectedAnswer: answerIndex, TimeSpentSeconds: timeSpentSeconds}
	var out Answer
	if err := c.do(ctx, http.MethodPost, "/quiz-attempts/"+pathID(attemptID)+"/answers", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteAttempt(ctx context.Context, attemptID string, timeSpentSeconds int) (*QuizAttempt, error) {
	body := map[string]int{"time_spent_seconds": timeSpentSeconds}
	var out QuizAttempt
	if err := c.do(ctx, http.MethodPost, "/quiz-attempts/"+pathID(attemptID)+"/complete", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AbandonAttempt(ctx context.Context, attemptID string) error {
	return c.do(ctx, http.MethodPost, "/quiz-attempts/"+pathID(attemptID)+"/abandon", nil, nil)
}
