package gate

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/platform/logging"
)

// foodLabels are the Rekognition labels counted as evidence of food.
var foodLabels = map[string]bool{
	"Food":    true,
	"Meal":    true,
	"Dish":    true,
	"Produce": true,
}

type detectLabelsAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionScorer scores images as 1 - confidence(food)/100 using AWS Rekognition.
type RekognitionScorer struct {
	region        string
	minConfidence float32
	logger        *logging.Logger

	once    sync.Once
	client  detectLabelsAPI
	loadErr error
}

func NewRekognitionScorer(region string, minConfidence float64, logger *logging.Logger) *RekognitionScorer {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &RekognitionScorer{region: region, minConfidence: float32(minConfidence), logger: logger}
}

// Load resolves AWS credentials and region once.
func (s *RekognitionScorer) Load(ctx context.Context) error {
	s.once.Do(func() {
		if s.client != nil {
			return
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.region))
		if err != nil {
			s.loadErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
			s.loadErr = fmt.Errorf("resolve aws credentials: %w", err)
			return
		}
		s.client = rekognition.NewFromConfig(cfg)
	})
	return s.loadErr
}

func (s *RekognitionScorer) Score(ctx context.Context, blob food.ImageBlob) (float64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("rekognition scorer not loaded")
	}

	payload := blob.Data
	if blob.Format != "jpeg" && blob.Format != "png" {
		// Rekognition accepts only JPEG and PNG
		img, err := Decode(blob.Data)
		if err != nil {
			return 0, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return 0, fmt.Errorf("re-encode as png: %w", err)
		}
		payload = buf.Bytes()
	}

	out, err := s.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: payload},
		MaxLabels:     aws.Int32(25),
		MinConfidence: aws.Float32(s.minConfidence),
	})
	if err != nil {
		return 0, fmt.Errorf("detect labels: %w", err)
	}

	var best float32
	for _, l := range out.Labels {
		if l.Name == nil || l.Confidence == nil || !foodLabels[*l.Name] {
			continue
		}
		if *l.Confidence > best {
			best = *l.Confidence
		}
	}
	s.logger.DebugTag("GATE", "rekognition labels=%d food_confidence=%.2f", len(out.Labels), best)
	return 1 - float64(best)/100, nil
}
