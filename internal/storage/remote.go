package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagegen-backend/internal/model"
	"pagegen-backend/internal/utils"
)

// RemoteStorage talks to another instance's store transport
// (/api/store/projects...).
type RemoteStorage struct {
	baseURL string
	client  *http.Client
}

func NewRemoteStorage(baseURL string, timeout time.Duration) *RemoteStorage {
	return &RemoteStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  utils.NewHTTPClient(timeout),
	}
}

func (r *RemoteStorage) Init() error {
	if _, err := url.ParseRequestURI(r.baseURL); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	return nil
}

func (r *RemoteStorage) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *RemoteStorage) messagesURL(projectID string) string {
	return r.baseURL + "/api/store/projects/" + url.PathEscape(projectID) + "/messages"
}

func (r *RemoteStorage) CreateProject(ctx context.Context, id string) error {
	resp, err := r.do(ctx, http.MethodPost, r.baseURL+"/api/store/projects", model.CreateProjectRequest{ID: id})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusConflict:
		return ErrProjectExists
	default:
		return statusError(resp)
	}
}

func (r *RemoteStorage) GetMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	resp, err := r.do(ctx, http.MethodGet, r.messagesURL(projectID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []model.Message{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var body model.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if body.Messages == nil {
		body.Messages = []model.Message{}
	}
	return body.Messages, nil
}

func (r *RemoteStorage) SaveMessages(ctx context.Context, projectID string, messages []model.Message) error {
	if messages == nil {
		messages = []model.Message{}
	}

	resp, err := r.do(ctx, http.MethodPut, r.messagesURL(projectID), model.SaveMessagesRequest{Messages: messages})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (r *RemoteStorage) do(ctx context.Context, method, target string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode, strings.TrimSpace(string(body)))
}
