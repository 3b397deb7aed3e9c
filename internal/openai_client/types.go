package openai_client

// Run statuses.
const (
	RunQueued         = "queued"
	RunInProgress     = "in_progress"
	RunRequiresAction = "requires_action"
	RunCancelling     = "cancelling"
	RunCancelled      = "cancelled"
	RunFailed         = "failed"
	RunCompleted      = "completed"
	RunIncomplete     = "incomplete"
	RunExpired        = "expired"
)

// File batch statuses.
const (
	BatchInProgress = "in_progress"
	BatchCompleted  = "completed"
	BatchCancelled  = "cancelled"
	BatchFailed     = "failed"
)

type listResponse[T any] struct {
	Data    []T    `json:"data"`
	FirstID string `json:"first_id"`
	LastID  string `json:"last_id"`
	HasMore bool   `json:"has_more"`
}

type Tool struct {
	Type string `json:"type"`
}

type ToolResources struct {
	FileSearch *struct {
		VectorStoreIDs []string `json:"vector_store_ids"`
	} `json:"file_search,omitempty"`
}

// Assistant is an assistant profile as returned by the API.
type Assistant struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Instructions  string        `json:"instructions"`
	Model         string        `json:"model"`
	CreatedAt     int64         `json:"created_at"`
	Tools         []Tool        `json:"tools"`
	ToolResources ToolResources `json:"tool_resources"`
}

type createAssistantRequest struct {
	Model        string `json:"model"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Tools        []Tool `json:"tools"`
}

type updateAssistantRequest struct {
	ToolResources struct {
		FileSearch struct {
			VectorStoreIDs []string `json:"vector_store_ids"`
		} `json:"file_search"`
	} `json:"tool_resources"`
}

type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message is one entry of a thread.
type Message struct {
	ID       string           `json:"id"`
	ThreadID string           `json:"thread_id"`
	Role     string           `json:"role"`
	RunID    string           `json:"run_id"`
	Content  []MessageContent `json:"content"`
}

type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

type MessageText struct {
	Value       string       `json:"value"`
	Annotations []Annotation `json:"annotations"`
}

// Annotation marks a span of message text; file citations point to the file
// the span was retrieved from.
type Annotation struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	StartIndex   int           `json:"start_index"`
	EndIndex     int           `json:"end_index"`
	FileCitation *FileCitation `json:"file_citation,omitempty"`
}

type FileCitation struct {
	FileID string `json:"file_id"`
}

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

// Run is one execution of a thread against an assistant.
type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      string    `json:"status"`
	LastError   *RunError `json:"last_error"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

type VectorStore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createVectorStoreRequest struct {
	Name string `json:"name"`
}

type createFileBatchRequest struct {
	FileIDs []string `json:"file_ids"`
}

type FileBatch struct {
	ID            string `json:"id"`
	VectorStoreID string `json:"vector_store_id"`
	Status        string `json:"status"`
	FileCounts    struct {
		InProgress int `json:"in_progress"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
		Cancelled  int `json:"cancelled"`
		Total      int `json:"total"`
	} `json:"file_counts"`
}
