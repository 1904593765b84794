package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
	"github.com/go-resty/resty/v2"
)

// ClassifierResult is the external wound classifier's verdict. ModelVersion is
// recorded for device-software traceability.
type ClassifierResult struct {
	SeverityScore float64 `json:"severity_score"`
	Stage         string  `json:"stage"`
	Confidence    float64 `json:"confidence"`
	ModelVersion  string  `json:"model_version"`
}

type ClassifierClient interface {
	Classify(ctx context.Context, woundId string, imageHash string) (*ClassifierResult, error)
}

// NewClassifierClient returns the mock classifier unless CLASSIFIER_MOCK_MODE
// is off and CLASSIFIER_URL is set.
func NewClassifierClient() ClassifierClient {
	url := os.Getenv("CLASSIFIER_URL")
	if config.ClassifierMockMode() || url == "" {
		return &MockClassifierClient{}
	}
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(config.AnalysisTimeout()).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if key := os.Getenv("CLASSIFIER_API_KEY"); key != "" {
		client.SetHeader("X-API-Key", key)
	}
	return &HTTPClassifierClient{client: client}
}

type HTTPClassifierClient struct {
	client *resty.Client
}

func (c *HTTPClassifierClient) Classify(ctx context.Context, woundId string, imageHash string) (*ClassifierResult, error) {
	var result ClassifierResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"wound_id": woundId, "image_hash": imageHash}).
		SetResult(&result).
		Post("/v1/classify")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: classifier call: %v", ErrAnalysisTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrClassificationUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: classifier returned %d", ErrClassificationUnavailable, resp.StatusCode())
	}
	return &result, nil
}

// MockClassifierClient mirrors the fixtures the mobile team tests against.
type MockClassifierClient struct{}

func (c *MockClassifierClient) Classify(ctx context.Context, woundId string, imageHash string) (*ClassifierResult, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisTimeout, ctx.Err())
	}
	return &ClassifierResult{
		SeverityScore: 2.7,
		Stage:         "Stage 2",
		Confidence:    0.94,
		ModelVersion:  "mock-1.0.0",
	}, nil
}
