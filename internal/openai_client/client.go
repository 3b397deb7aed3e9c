package openai_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Client talks to the assistants API (v2) over plain HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config for the assistants API client
type Config struct {
	APIKey  string
	BaseURL string
	Model   string // used when creating assistants
	Timeout time.Duration
}

// APIError is returned when the API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistants API returned status %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new assistants API client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// ListAssistants returns every assistant of the account, following pagination.
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var all []Assistant
	after := ""
	for {
		q := url.Values{}
		q.Set("limit", "100")
		q.Set("order", "asc")
		if after != "" {
			q.Set("after", after)
		}

		var page listResponse[Assistant]
		if err := c.do(ctx, http.MethodGet, "/assistants?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)

		if !page.HasMore || page.LastID == "" {
			return all, nil
		}
		after = page.LastID
	}
}

// CreateAssistant creates an assistant with the file_search tool enabled.
func (c *Client) CreateAssistant(ctx context.Context, name, description, instructions string) (*Assistant, error) {
	req := createAssistantRequest{
		Model:        c.model,
		Name:         name,
		Description:  description,
		Instructions: instructions,
		Tools:        []Tool{{Type: "file_search"}},
	}

	var assistant Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants", req, &assistant); err != nil {
		return nil, err
	}
	return &assistant, nil
}

// SetVectorStores replaces the vector stores bound to the assistant's
// file_search tool.
func (c *Client) SetVectorStores(ctx context.Context, assistantID string, vectorStoreIDs []string) (*Assistant, error) {
	req := updateAssistantRequest{}
	req.ToolResources.FileSearch.VectorStoreIDs = vectorStoreIDs

	var assistant Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants/"+url.PathEscape(assistantID), req, &assistant); err != nil {
		return nil, err
	}
	return &assistant, nil
}

// CreateThread creates an empty thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	req := createMessageRequest{Role: role, Content: content}

	var msg Message
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns the messages of a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	var page listResponse[Message]
	path := "/threads/" + url.PathEscape(threadID) + "/messages?order=desc"
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

// CreateRun starts a run of the thread against an assistant.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	req := createRunRequest{AssistantID: assistantID}

	var run Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun retrieves the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetFile retrieves file metadata.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var file File
	if err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID), nil, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// UploadFile uploads content for use by assistants.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (*File, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return nil, fmt.Errorf("failed to write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/files", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var file File
	if err := c.send(req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// CreateVectorStore creates an empty vector store.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (*VectorStore, error) {
	var store VectorStore
	if err := c.do(ctx, http.MethodPost, "/vector_stores", createVectorStoreRequest{Name: name}, &store); err != nil {
		return nil, err
	}
	return &store, nil
}

// CreateFileBatch adds uploaded files to a vector store.
func (c *Client) CreateFileBatch(ctx context.Context, vectorStoreID string, fileIDs []string) (*FileBatch, error) {
	var batch FileBatch
	path := "/vector_stores/" + url.PathEscape(vectorStoreID) + "/file_batches"
	if err := c.do(ctx, http.MethodPost, path, createFileBatchRequest{FileIDs: fileIDs}, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// GetFileBatch retrieves the indexing state of a file batch.
func (c *Client) GetFileBatch(ctx context.Context, vectorStoreID, batchID string) (*FileBatch, error) {
	var batch FileBatch
	path := "/vector_stores/" + url.PathEscape(vectorStoreID) + "/file_batches/" + url.PathEscape(batchID)
	if err := c.do(ctx, http.MethodGet, path, nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	return req, nil
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}

		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr.Type = envelope.Error.Type
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}

		c.logger.Debug("Assistants API request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
