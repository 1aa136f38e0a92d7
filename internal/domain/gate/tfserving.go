package gate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"nutrilens-server-go/internal/domain/food"
)

// TFServingScorer calls a TensorFlow Serving REST endpoint hosting the food classifier.
type TFServingScorer struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewTFServingScorer(baseURL, model string, client *http.Client) *TFServingScorer {
	if client == nil {
		client = &http.Client{}
	}
	return &TFServingScorer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  client,
	}
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
		Status  struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
}

type predictRequest struct {
	Instances Tensor `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Load requires at least one model version in state AVAILABLE.
func (s *TFServingScorer) Load(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/models/%s", s.baseURL, s.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create status request: %w", err)
	}

	var status modelStatusResponse
	if err := s.do(req, &status); err != nil {
		return fmt.Errorf("model status: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("model %s has no AVAILABLE version", s.model)
}

func (s *TFServingScorer) Score(ctx context.Context, blob food.ImageBlob) (float64, error) {
	tensor, err := Preprocess(blob.Data, InputSize)
	if err != nil {
		return 0, err
	}
	body, err := sonic.Marshal(predictRequest{Instances: tensor})
	if err != nil {
		return 0, fmt.Errorf("encode predict request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", s.baseURL, s.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var pred predictResponse
	if err := s.do(req, &pred); err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if pred.Error != "" {
		return 0, fmt.Errorf("predict: %s", pred.Error)
	}
	if len(pred.Predictions) == 0 || len(pred.Predictions[0]) == 0 {
		return 0, fmt.Errorf("predict: empty predictions")
	}
	return pred.Predictions[0][0], nil
}

func (s *TFServingScorer) do(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data[:min(len(data), 256)])))
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
