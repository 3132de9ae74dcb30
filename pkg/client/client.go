package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/githunter/githunter/internal/domain"
)

// ErrReportNotReady is returned by GetReport while the job is still
// running (HTTP 202)
var ErrReportNotReady = fmt.Errorf("report not ready")

// Client is the API client for githunter
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// GetUser fetches a profile report synchronously
func (c *Client) GetUser(username string) (*domain.Analysis, error) {
	var analysis domain.Analysis
	if err := c.get("/api/user/"+username, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Analyze enqueues an analysis job and returns its id
func (c *Client) Analyze(username, view, jobContext string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"view":     view,
		"context":  jobContext,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Post(c.baseURL+"/api/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", apiError(resp)
	}

	var result struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.JobID, nil
}

// GetStatus fetches the status of a job
func (c *Client) GetStatus(jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := c.get("/api/status/"+jobID, &job); err != nil {
		return nil, err
	}
	job.ID = jobID
	return &job, nil
}

// GetReport fetches the finished analysis for a job. It returns
// ErrReportNotReady while the job is still running.
func (c *Client) GetReport(jobID string) (*domain.Analysis, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/report/" + jobID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var analysis domain.Analysis
		if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
			return nil, err
		}
		return &analysis, nil
	case http.StatusAccepted:
		return nil, ErrReportNotReady
	default:
		return nil, apiError(resp)
	}
}

// GetLatestReport fetches the most recent cached analysis for a username
func (c *Client) GetLatestReport(username string) (*domain.Analysis, error) {
	var analysis domain.Analysis
	if err := c.get("/api/report/latest/"+username, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// WaitForCompletion polls a job until it reaches a terminal state or the
// timeout elapses
func (c *Client) WaitForCompletion(jobID string, pollInterval, timeout time.Duration) (*domain.Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := c.GetStatus(jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		if time.Now().After(deadline) {
			return job, fmt.Errorf("job %s still %s after %s", jobID, job.Status, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(path string, result interface{}) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
}
