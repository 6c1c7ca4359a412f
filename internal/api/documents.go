package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// UploadFile is one file to upload.
type UploadFile struct {
	Name   string
	Reader io.Reader
}

// UploadDocuments posts files as multipart form field "files".
func (c *Client) UploadDocuments(ctx context.Context, files []UploadFile) ([]UploadResponse, error) {
	if len(files) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"files": "Select at least one file"}}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", filepath.Base(f.Name))
		if err != nil {
			return nil, fmt.Errorf("create form file %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-multiple", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.fetcher.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST /upload-multiple: %w", err)
	}
	var out []UploadResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadPaths opens and uploads files from disk.
func (c *Client) UploadPaths(ctx context.Context, paths ...string) ([]UploadResponse, error) {
	files := make([]UploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		defer f.Close()
		files = append(files, UploadFile{Name: p, Reader: f})
	}
	return c.UploadDocuments(ctx, files)
}

func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.do(ctx, http.MethodGet, "/documents", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) (*DeleteDocumentResponse, error) {
	var out DeleteDocumentResponse
	if err := c.do(ctx, http.MethodDelete, "/documents/"+pathID(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DocumentViewURL is where the original file is served. Fetching it needs the
// bearer token, so use DownloadDocument unless handing the URL to the gateway.
func (c *Client) DocumentViewURL(id string) string {
	return c.baseURL + "/documents/" + pathID(id) + "/view"
}

func (c *Client) DownloadDocument(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, "/documents/"+pathID(id)+"/view")
}
