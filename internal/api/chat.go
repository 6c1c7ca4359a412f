package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dvcrn/studymate-cli/internal/sse"
)

func (c *Client) CreateChatSession(ctx context.Context, req CreateChatSessionRequest) (*ChatSession, error) {
	if req.SessionType == "" {
		req.SessionType = "rag"
	}
	if req.DocumentIDs == nil {
		req.DocumentIDs = []string{}
	}
	var out ChatSession
	if err := c.do(ctx, http.MethodPost, "/chat-sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListChatSessions(ctx context.Context) ([]ChatSession, error) {
	var out []ChatSession
	if err := c.do(ctx, http.MethodGet, "/chat-sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameChatSession sends the new name as a bare JSON string.
func (c *Client) RenameChatSession(ctx context.Context, id, name string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.do(ctx, http.MethodPut, "/chat-sessions/"+pathID(id)+"/name", name, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteChatSession(ctx context.Context, id string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.do(ctx, http.MethodDelete, "/chat-sessions/"+pathID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatMessages returns up to limit messages; limit <= 0 means 50.
func (c *Client) ChatMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ChatMessage
	path := fmt.Sprintf("/chat-sessions/%s/messages?limit=%d", pathID(sessionID), limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddChatMessage(ctx context.Context, sessionID string, msg NewChatMessage) (*ChatMessage, error) {
	var out ChatMessage
	if err := c.do(ctx, http.MethodPost, "/chat-sessions/"+pathID(sessionID)+"/messages", msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query asks a question and waits for the full answer.
func (c *Client) Query(ctx context.Context, question string, opts QueryOptions) (*QueryResponse, error) {
	var out QueryResponse
	if err := c.do(ctx, http.MethodPost, "/query", queryRequest{Question: question, QueryOptions: opts}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryWithChatContext asks within an existing chat session.
func (c *Client) QueryWithChatContext(ctx context.Context, sessionID, question string) (*QueryResponse, error) {
	var out QueryResponse
	body := map[string]string{"question": question}
	if err := c.do(ctx, http.MethodPost, "/chat-sessions/"+pathID(sessionID)+"/query", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryStream asks a question over /query-stream. onDelta receives each
// non-empty piece of the answer as it arrives. The returned response comes
// from the terminal frame and replaces the placeholder built from opts; when
// the stream ends early the placeholder carries the partial answer.
func (c *Client) QueryStream(ctx context.Context, question string, opts QueryOptions, onDelta func(string)) (*QueryResponse, error) {
	res, err := c.stream(ctx, "/query-stream", queryRequest{Question: question, QueryOptions: opts}, sse.Handler{OnDelta: onDelta})
	if err != nil {
		return nil, err
	}

	if !res.Done || len(res.Terminal) == 0 {
		return &QueryResponse{Answer: res.FullText, SessionID: opts.SessionID}, nil
	}

	var out QueryResponse
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	out.Answer = res.FullText
	return &out, nil
}
