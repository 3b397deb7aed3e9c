package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"pdfqa/internal/models"
	"pdfqa/internal/openai_client"
	"pdfqa/internal/storage"

	"go.uber.org/zap"
)

// AssistantAPI is the subset of the remote assistants API used by the
// orchestrator.
type AssistantAPI interface {
	ListAssistants(ctx context.Context) ([]openai_client.Assistant, error)
	CreateAssistant(ctx context.Context, name, description, instructions string) (*openai_client.Assistant, error)
	SetVectorStores(ctx context.Context, assistantID string, vectorStoreIDs []string) (*openai_client.Assistant, error)
	CreateThread(ctx context.Context) (*openai_client.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (*openai_client.Message, error)
	ListMessages(ctx context.Context, threadID string) ([]openai_client.Message, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (*openai_client.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*openai_client.Run, error)
	GetFile(ctx context.Context, fileID string) (*openai_client.File, error)
	UploadFile(ctx context.Context, filename string, content io.Reader) (*openai_client.File, error)
	CreateVectorStore(ctx context.Context, name string) (*openai_client.VectorStore, error)
	CreateFileBatch(ctx context.Context, vectorStoreID string, fileIDs []string) (*openai_client.FileBatch, error)
	GetFileBatch(ctx context.Context, vectorStoreID, batchID string) (*openai_client.FileBatch, error)
}

// FileStore keeps the uploaded documents of each assistant, keyed by the
// remote assistant id.
type FileStore interface {
	Save(assistantID, filename string, content io.Reader) (string, error)
	List(assistantID string) ([]string, error)
	Open(path string) (io.ReadCloser, error)
}

// Notifier forwards operator notifications. A nil Notifier is allowed.
type Notifier interface {
	Notify(text string) error
}

type AssistantConfig struct {
	PollInterval time.Duration
	RunTimeout   time.Duration
	IndexTimeout time.Duration
}

type AssistantService interface {
	ListAssistants(ctx context.Context) ([]string, error)
	GetAssistant(ctx context.Context, name string) (*models.Assistant, error)
	CreateAssistant(ctx context.Context, name, description, instructions string) (*models.Assistant, error)
	Ask(ctx context.Context, assistantName, question string) (*models.Answer, error)
	AttachPDF(ctx context.Context, assistantName, filename string, content io.Reader) error
}

var allowedExtensions = map[string]bool{"pdf": true}

type assistantService struct {
	api      AssistantAPI
	store    FileStore
	notifier Notifier
	cfg      AssistantConfig
	logger   *zap.Logger
}

func NewAssistantService(api AssistantAPI, store FileStore, notifier Notifier, cfg AssistantConfig, logger *zap.Logger) AssistantService {
	return &assistantService{
		api:      api,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

func remoteErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemote, op, err)
}

func (s *assistantService) ListAssistants(ctx context.Context) ([]string, error) {
	assistants, err := s.api.ListAssistants(ctx)
	if err != nil {
		return nil, remoteErr("list assistants", err)
	}

	names := make([]string, 0, len(assistants))
	for _, a := range assistants {
		names = append(names, a.Name)
	}
	return names, nil
}

func (s *assistantService) GetAssistant(ctx context.Context, name string) (*models.Assistant, error) {
	a, err := s.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return toModel(a), nil
}

func (s *assistantService) CreateAssistant(ctx context.Context, name, description, instructions string) (*models.Assistant, error) {
	s.logger.Info("Creating assistant", zap.String("name", name))

	_, err := s.resolve(ctx, name)
	if err == nil {
		return nil, ErrAssistantExists
	}
	if !errors.Is(err, ErrAssistantNotFound) {
		return nil, err
	}

	a, err := s.api.CreateAssistant(ctx, name, description, instructions)
	if err != nil {
		return nil, remoteErr("create assistant", err)
	}
	return toModel(a), nil
}

// Ask runs question against the named assistant on a fresh thread and
// returns the post-processed reply.
func (s *assistantService) Ask(ctx context.Context, assistantName, question string) (*models.Answer, error) {
	s.logger.Info("Ask", zap.String("assistant", assistantName), zap.String("question", question))

	assistant, err := s.resolve(ctx, assistantName)
	if err != nil {
		return nil, err
	}

	thread, err := s.api.CreateThread(ctx)
	if err != nil {
		return nil, remoteErr("create thread", err)
	}
	if _, err := s.api.CreateMessage(ctx, thread.ID, "user", question); err != nil {
		return nil, remoteErr("create message", err)
	}

	run, err := s.api.CreateRun(ctx, thread.ID, assistant.ID)
	if err != nil {
		return nil, remoteErr("create run", err)
	}

	last := run
	outcome, err := PollUntil(ctx, s.cfg.PollInterval, s.cfg.RunTimeout, func(ctx context.Context) (PollState, error) {
		r, err := s.api.GetRun(ctx, thread.ID, run.ID)
		if err != nil {
			return PollPending, err
		}
		last = r
		return runState(r.Status), nil
	})
	if err != nil {
		return nil, remoteErr("poll run", err)
	}

	if outcome != PollCompleted {
		s.reportRunFailure(ctx, assistantName, thread.ID, last, outcome)
		return nil, fmt.Errorf("%w: run %s %s (status %s)", ErrRunFailed, run.ID, outcome, last.Status)
	}

	messages, err := s.api.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, remoteErr("list messages", err)
	}
	// newest first: the reply is the first message
	if len(messages) == 0 || len(messages[0].Content) == 0 || messages[0].Content[0].Text == nil {
		return nil, fmt.Errorf("%w: thread %s has no text reply", ErrRemote, thread.ID)
	}

	return s.annotate(ctx, messages[0].Content[0].Text)
}

func runState(status string) PollState {
	switch status {
	case openai_client.RunCompleted:
		return PollDone
	case openai_client.RunFailed, openai_client.RunCancelled, openai_client.RunExpired,
		openai_client.RunIncomplete, openai_client.RunRequiresAction:
		return PollAborted
	}
	return PollPending
}

func (s *assistantService) reportRunFailure(ctx context.Context, assistantName, threadID string, run *openai_client.Run, outcome PollOutcome) {
	fields := []zap.Field{
		zap.String("assistant", assistantName),
		zap.String("thread_id", threadID),
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Stringer("outcome", outcome),
	}

	if run.Status == openai_client.RunFailed {
		// the failure detail is not always present on the polled object
		if r, err := s.api.GetRun(context.WithoutCancel(ctx), threadID, run.ID); err == nil {
			run = r
		}
		if run.LastError != nil {
			fields = append(fields, zap.String("failure", run.LastError.Code+" - "+run.LastError.Message))
		}
	}

	s.logger.Error("Run did not complete", fields...)
	s.notify(fmt.Sprintf("Run %s on assistant %q ended as %s (status %s)", run.ID, assistantName, outcome, run.Status))
}

// annotate replaces every annotated span with a numbered footnote marker and
// resolves file citations to "[n] from <filename>".
func (s *assistantService) annotate(ctx context.Context, text *openai_client.MessageText) (*models.Answer, error) {
	value := text.Value
	citations := []string{}

	for i, ann := range text.Annotations {
		if ann.Text != "" {
			value = strings.ReplaceAll(value, ann.Text, fmt.Sprintf(" [%d]", i))
		}
		if ann.FileCitation == nil {
			continue
		}
		file, err := s.api.GetFile(ctx, ann.FileCitation.FileID)
		if err != nil {
			return nil, remoteErr("retrieve cited file", err)
		}
		citations = append(citations, fmt.Sprintf("[%d] from %s", i, file.Filename))
	}

	return &models.Answer{Text: value, Citations: citations}, nil
}

// AttachPDF stores the file for the assistant and rebuilds the assistant's
// vector index from every file stored for it.
func (s *assistantService) AttachPDF(ctx context.Context, assistantName, filename string, content io.Reader) error {
	s.logger.Info("Attaching file", zap.String("assistant", assistantName), zap.String("filename", filename))

	assistant, err := s.resolve(ctx, assistantName)
	if err != nil {
		return err
	}

	if filename == "" || content == nil {
		return ErrFileMissing
	}
	secure := storage.SecureFilename(filename)
	if !allowedFile(filename) || !allowedFile(secure) {
		return ErrFilenameNotAllowed
	}

	if _, err := s.store.Save(assistant.ID, secure, content); err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}

	paths, err := s.store.List(assistant.ID)
	if err != nil {
		return fmt.Errorf("failed to list uploads: %w", err)
	}

	fileIDs := make([]string, 0, len(paths))
	for _, path := range paths {
		id, err := s.upload(ctx, path)
		if err != nil {
			return err
		}
		fileIDs = append(fileIDs, id)
	}

	store, err := s.api.CreateVectorStore(ctx, secure)
	if err != nil {
		return remoteErr("create vector store", err)
	}
	batch, err := s.api.CreateFileBatch(ctx, store.ID, fileIDs)
	if err != nil {
		return remoteErr("create file batch", err)
	}

	last := batch
	outcome, err := PollUntil(ctx, s.cfg.PollInterval, s.cfg.IndexTimeout, func(ctx context.Context) (PollState, error) {
		b, err := s.api.GetFileBatch(ctx, store.ID, batch.ID)
		if err != nil {
			return PollPending, err
		}
		last = b
		switch b.Status {
		case openai_client.BatchCompleted:
			return PollDone, nil
		case openai_client.BatchFailed, openai_client.BatchCancelled:
			return PollAborted, nil
		}
		return PollPending, nil
	})
	if err != nil {
		return remoteErr("poll file batch", err)
	}
	if outcome != PollCompleted {
		s.logger.Error("File batch did not complete",
			zap.String("vector_store_id", store.ID),
			zap.String("batch_id", batch.ID),
			zap.String("status", last.Status),
			zap.Stringer("outcome", outcome),
		)
		return fmt.Errorf("%w: batch %s %s", ErrIndexFailed, batch.ID, outcome)
	}

	if _, err := s.api.SetVectorStores(ctx, assistant.ID, []string{store.ID}); err != nil {
		return remoteErr("bind vector store", err)
	}

	s.logger.Info("Vector index rebuilt",
		zap.String("assistant", assistant.Name),
		zap.String("vector_store_id", store.ID),
		zap.Int("files", len(fileIDs)),
	)
	s.notify(fmt.Sprintf("Assistant %q re-indexed with %d file(s) after upload of %s", assistant.Name, len(fileIDs), secure))
	return nil
}

func (s *assistantService) upload(ctx context.Context, path string) (string, error) {
	f, err := s.store.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	file, err := s.api.UploadFile(ctx, filepath.Base(path), f)
	if err != nil {
		return "", remoteErr("upload file", err)
	}
	return file.ID, nil
}

// resolve finds the remote assistant by name.
func (s *assistantService) resolve(ctx context.Context, name string) (*openai_client.Assistant, error) {
	if name == "" {
		return nil, ErrAssistantNotFound
	}

	assistants, err := s.api.ListAssistants(ctx)
	if err != nil {
		return nil, remoteErr("list assistants", err)
	}
	for i := range assistants {
		if assistants[i].Name == name {
			return &assistants[i], nil
		}
	}
	return nil, ErrAssistantNotFound
}

func (s *assistantService) notify(text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(text); err != nil {
		s.logger.Warn("Failed to send notification", zap.Error(err))
	}
}

func allowedFile(filename string) bool {
	ext := filepath.Ext(filename)
	if ext == "" {
		return false
	}
	return allowedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

func toModel(a *openai_client.Assistant) *models.Assistant {
	m := &models.Assistant{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Instructions: a.Instructions,
		Model:        a.Model,
		CreatedAt:    a.CreatedAt,
	}
	if a.ToolResources.FileSearch != nil {
		m.VectorStores = a.ToolResources.FileSearch.VectorStoreIDs
	}
	return m
}
