package api

import (
	"context"
	"fmt"
)

// Chat sends one message to POST /chat.
func (c *Client) Chat(ctx context.Context, message string) (*ChatResponse, error) {
	var resp ChatResponse
	req := ChatRequest{Message: message, Client: ClientInfo{UI: c.clientUI}}
	if err := c.postJSON(ctx, "/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume fetches the last n server-side turns.
func (c *Client) Resume(ctx context.Context, n int) (*ResumeResponse, error) {
	var resp ResumeResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/session/resume?n=%d", n), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Feedback rates an assistant reply.
func (c *Client) Feedback(ctx context.Context, req FeedbackRequest) error {
	return c.postJSON(ctx, "/feedback", req, nil)
}

// StreamURL returns the absolute URL of the telemetry event stream.
func (c *Client) StreamURL(path string) string {
	if path == "" {
		path = "/api/logs"
	}
	return c.URL(path)
}

// Analyze runs the simple-mode analysis endpoint.
func (c *Client) Analyze(ctx context.Context, text string) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.postJSON(ctx, "/api/chat", AnalyzeRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retrain asks the simple-mode backend to retrain its models.
func (c *Client) Retrain(ctx context.Context) (*RetrainResponse, error) {
	var resp RetrainResponse
	if err := c.postJSON(ctx, "/api/retrain", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile reports whether a user profile exists.
func (c *Client) Profile(ctx context.Context) (*ProfileStatus, error) {
	var resp ProfileStatus
	if err := c.getJSON(ctx, "/user/profile", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveProfile stores the user profile.
func (c *Client) SaveProfile(ctx context.Context, p Profile) error {
	return c.postJSON(ctx, "/user/profile", p, nil)
}

// TrainingStatus returns the training directories and last runs.
func (c *Client) TrainingStatus(ctx context.Context) (*TrainingStatus, error) {
	var resp TrainingStatus
	if err := c.getJSON(ctx, "/training/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunTraining starts a training run. Requires an admin session.
func (c *Client) RunTraining(ctx context.Context, req TrainingRunRequest) (*TrainingRunResponse, error) {
	var resp TrainingRunResponse
	if err := c.postJSON(ctx, "/training/run", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns the backend health snapshot.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.getJSON(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
