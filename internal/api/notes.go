package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// GenerateNotes starts note generation. The backend answers right away with
// a note in the generating state; poll GetNote or use WaitForNote.
func (c *Client) GenerateNotes(ctx context.Context, req GenerateNotesRequest) (*Note, error) {
	if len(req.DocumentIDs) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"document_ids": "Select at least one document"}}
	}
	var out Note
	if err := c.do(ctx, http.MethodPost, "/notes/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListNotes pages through notes; limit <= 0 means 50.
func (c *Client) ListNotes(ctx context.Context, limit, offset int) ([]Note, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Note
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/notes?limit=%d&offset=%d", limit, offset), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetNote(ctx context.Context, id string) (*Note, error) {
	var out Note
	if err := c.do(ctx, http.MethodGet, "/notes/"+pathID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+pathID(id), nil, nil)
}

// AskNote asks a question scoped to one note.
func (c *Client) AskNote(ctx context.Context, id, question string) (*NoteAnswer, error) {
	var out NoteAnswer
	if err := c.do(ctx, http.MethodPost, "/notes/"+pathID(id)+"/ask", map[string]string{"question": question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DownloadNoteMarkdown(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/notes/"+pathID(id)+"/download/markdown")
}

func (c *Client) DownloadNotePDF(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/notes/"+pathID(id)+"/download/pdf")
}

// WaitForNote polls until the note leaves the generating state or ctx ends.
func (c *Client) WaitForNote(ctx context.Context, id string, interval time.Duration) (*Note, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for {
		note, err := c.GetNote(ctx, id)
		if err != nil {
			return nil, err
		}
		switch note.Status {
		case NoteStatusCompleted:
			return note, nil
		case NoteStatusFailed:
			return note, fmt.Errorf("note generation failed: %s", note.Error)
		}

		select {
		case <-ctx.Done():
			return note, ctx.Err()
		case <-time.After(interval):
		}
	}
}
