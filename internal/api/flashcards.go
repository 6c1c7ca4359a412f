package api

import (
	"context"
	"errors"

	"github.com/dvcrn/studymate-cli/internal/sse"
)

// GenerateFlashcardsStream streams flashcard generation. onProgress sees each
// status/message frame; the cards come from the terminal frame.
func (c *Client) GenerateFlashcardsStream(ctx context.Context, req GenerateFlashcardsRequest, onProgress func(status, message string)) ([]Flashcard, error) {
	if req.NumFlashcards < 0 {
		return nil, &ValidationError{Fields: map[string]string{"num_flashcards": "Number of flashcards must be positive"}}
	}
	res, err := c.stream(ctx, "/flashcards/generate-stream", req, sse.Handler{OnProgress: onProgress})
	if err != nil {
		return nil, err
	}
	if !res.Done {
		return nil, errors.New("flashcard stream ended before the cards were generated")
	}

	var payload struct {
		Flashcards []Flashcard `json:"flashcards"`
	}
	if err := res.Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Flashcards, nil
}
