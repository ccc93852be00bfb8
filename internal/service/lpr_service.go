package service

import (
	"context"
	"errors"
	"fmt"
	"parking_control/internal/domain"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog/log"
)

var ErrPlateNotDetected = errors.New("no license plate found in image")

// TextDetector is the slice of the Rekognition client used for plate reading.
type TextDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

type LPRService struct {
	detector TextDetector
}

func NewLPRService(detector TextDetector) *LPRService {
	return &LPRService{detector: detector}
}

// DetectPlate returns the plate-shaped text with the highest confidence.
func (s *LPRService) DetectPlate(ctx context.Context, imageBytes []byte) (string, float32, error) {
	if s.detector == nil {
		return "", 0, fmt.Errorf("rekognition client is not configured")
	}

	result, err := s.detector.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: imageBytes},
	})
	if err != nil {
		return "", 0, fmt.Errorf("rekognition detect text: %w", err)
	}

	log.Debug().Int("detections", len(result.TextDetections)).Msg("rekognition returned text")

	var plate string
	var best float32
	for _, detection := range result.TextDetections {
		if detection.DetectedText == nil || detection.Confidence == nil {
			continue
		}
		if detection.Type != types.TextTypesLine && detection.Type != types.TextTypesWord {
			continue
		}
		candidate := normalizePlate(*detection.DetectedText)
		if !domain.LicensePlatePattern.MatchString(candidate) {
			continue
		}
		if *detection.Confidence > best {
			best = *detection.Confidence
			plate = candidate
		}
	}

	if plate == "" {
		return "", 0, ErrPlateNotDetected
	}
	log.Info().Str("plate", plate).Float32("confidence", best).Msg("license plate detected")
	return plate, best, nil
}

// normalizePlate drops the separators people and cameras put between plate groups.
func normalizePlate(text string) string {
	text = strings.ToUpper(text)
	return strings.NewReplacer(" ", "", "-", "", ".", "").Replace(text)
}
