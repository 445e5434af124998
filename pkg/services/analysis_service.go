package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/jphacks/os-2412/pkg/domain"
	"github.com/jphacks/os-2412/pkg/logger"
)

type VisionProvider interface {
	DescribeImage(ctx context.Context, req domain.CompletionRequest) (string, error)
}

type analysisService struct {
	provider VisionProvider
	language string
	now      func() time.Time
}

func NewAnalysisService(provider VisionProvider, language string) *analysisService {
	return &analysisService{
		provider: provider,
		language: language,
		now:      time.Now,
	}
}

// Analyze asks for a narration and a place name for the same image. The two
// requests run concurrently; the result is only returned when both succeed.
func (a *analysisService) Analyze(ctx context.Context, image domain.ImageRef, coords domain.Coordinates) (*domain.AnalysisResult, error) {
	slog.InfoContext(ctx, "Starting image analysis", "imageSizeBytes", len(image.Data), "latitude", coords.Latitude, "longitude", coords.Longitude)

	var (
		wg                     sync.WaitGroup
		narration, placeName   string
		narrationErr, placeErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		narration, narrationErr = a.ask(ctx, narrationPrompt(coords, a.language), image, domain.NarrationMaxTokens)
		if narrationErr != nil {
			narrationErr = fmt.Errorf("requesting narration: %w", narrationErr)
		}
	}()
	go func() {
		defer wg.Done()
		placeName, placeErr = a.ask(ctx, placeNamePrompt(coords), image, domain.PlaceNameMaxTokens)
		if placeErr != nil {
			placeErr = fmt.Errorf("requesting place name: %w", placeErr)
		}
	}()
	wg.Wait()

	if err := multierror.Append(nil, narrationErr, placeErr).ErrorOrNil(); err != nil {
		slog.ErrorContext(ctx, "Image analysis failed", logger.Err(err))
		return nil, &domain.AnalysisError{Cause: err}
	}

	result := &domain.AnalysisResult{
		Narration:   scrubCoordinates(narration, coords),
		PlaceName:   strings.TrimSpace(placeName),
		Coordinates: coords,
		CreatedAt:   a.now(),
	}

	slog.InfoContext(ctx, "Image analysis completed", "placeName", result.PlaceName, "narrationLength", len(result.Narration))

	return result, nil
}

func (a *analysisService) ask(ctx context.Context, prompt string, image domain.ImageRef, maxTokens int) (string, error) {
	return a.provider.DescribeImage(ctx, domain.CompletionRequest{
		Messages: []domain.Message{{
			Role:  domain.MessageRoleUser,
			Text:  prompt,
			Image: &image,
		}},
		MaxTokens: maxTokens,
	})
}

// scrubCoordinates removes decimal coordinate literals the model echoed back
// despite being told not to. Whole-number coordinates are left alone since
// they cannot be told apart from ordinary numbers in the text.
func scrubCoordinates(text string, c domain.Coordinates) string {
	for _, v := range []float64{c.Latitude, c.Longitude} {
		for _, literal := range []string{domain.FormatCoordinate(v), domain.FormatCoordinate(math.Abs(v))} {
			if !strings.Contains(literal, ".") {
				continue
			}
			text = strings.ReplaceAll(text, literal, "")
		}
	}
	return strings.TrimSpace(text)
}
