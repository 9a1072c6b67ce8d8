package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shaggydog-ai/shaggydog/internal/logger"
	"github.com/shaggydog-ai/shaggydog/internal/vision"
)

// Detection errors surfaced by the detector. Both are terminal for the job.
var (
	// ErrContentPolicyRefusal indicates the capability declined the analysis
	ErrContentPolicyRefusal = errors.New("content policy refusal")
	// ErrInvalidBreed indicates the extracted breed failed validation
	ErrInvalidBreed = errors.New("invalid breed extracted")
)

// MaxBreedLength is the longest accepted breed label
const MaxBreedLength = 50

// refusalKeywords mark a capability answer as a refusal when any of them
// appears, case-insensitively.
var refusalKeywords = []string{
	"sorry", "can't", "cannot", "unable", "not able", "i'm not", "i cannot", "i can't",
}

// referenceBreeds is the fixed fallback list scanned when the answer lacks a
// BREED: marker. Order matters: longer names come before their substrings.
var referenceBreeds = []string{
	"Golden Retriever", "Labrador Retriever", "Labrador", "German Shepherd",
	"Beagle", "Bulldog", "French Bulldog", "Poodle", "Husky", "Siberian Husky",
	"Border Collie", "Corgi", "Pembroke Welsh Corgi", "Shih Tzu", "Pug",
	"Chihuahua", "Dachshund", "Australian Shepherd", "Rottweiler", "Doberman",
	"Boxer", "Great Dane", "Mastiff", "Saint Bernard", "Bernese Mountain Dog",
	"Shiba Inu", "Akita", "Chow Chow", "Dalmatian", "Weimaraner",
}

const (
	describeSystem = "You are a visual analyst that describes images in detail. You focus on observable visual characteristics, shapes, colors, textures, and patterns without identifying specific individuals."

	describePrompt = `Describe the visual characteristics you see in this image. Focus on:

1. Face shape: (round, oval, square, long, heart-shaped, angular, rectangular)
2. Eye characteristics: (shape - almond/round/oval, size, spacing, positioning)
3. Color palette: (dominant colors, skin tone - light/medium/dark, hair color if visible, overall color scheme)
4. Hair/texture: (if visible - color, texture - curly/straight/wavy, length, style)
5. Facial structure: (cheekbone prominence, jawline shape, nose shape and size, facial angles)
6. Build/physique: (if visible - athletic, stocky, lean, petite, large-framed, body proportions)
7. Expression: (friendly, serious, playful, calm, intense - based on visual cues)
8. Overall proportions: (head size relative to body, facial feature proportions)

Provide a detailed description of these visual characteristics. Be specific about colors, shapes, and proportions.`

	matchSystem = "You are an expert at matching visual characteristics to dog breeds for creative art projects. You analyze descriptions of visual features and determine which dog breed would be the best artistic match."

	matchPromptFormat = `Based on this visual description, determine which dog breed would be the best artistic match:

VISUAL DESCRIPTION:
%s

Analyze the described characteristics and match them to a dog breed considering:
- Facial structure similarities (face shape, jawline, cheekbones, nose)
- Color matching (skin/hair colors matching coat colors)
- Build similarities (athletic, stocky, lean, etc.)
- Proportional similarities (head-to-body ratio, feature proportions)
- Overall energy/expression match

Respond in EXACTLY this format:
BREED: [specific dog breed name - be precise]
REASONING: [2-3 sentences explaining which specific characteristics from the description led to this breed match]`

	// fallbackDescription replaces a refused step-1 answer so detection can
	// still proceed on an abstract description.
	fallbackDescription = "A portrait image with various visual characteristics including facial features, coloring, and structure."

	// defaultReasoning is used when the capability returned a breed without
	// any REASONING line.
	defaultReasoning = "Based on facial features and physical characteristics observed in the image."
)

// Detector turns a portrait into a matching dog breed using the vision
// capability. Detection is two-step: a neutral visual description first,
// then a mapping from that description to a breed. Asking about the
// description rather than the person makes content-policy refusals rarer.
type Detector struct {
	api vision.API
}

// NewDetector creates a new detector instance
func NewDetector(api vision.API) *Detector {
	return &Detector{api: api}
}

// DetectBreed analyzes a portrait and returns the matching breed with a
// short rationale.
func (d *Detector) DetectBreed(ctx context.Context, image []byte) (string, string, error) {
	if len(image) == 0 {
		return "", "", fmt.Errorf("image is empty")
	}

	description, err := d.api.AnalyzeImage(ctx, vision.AnalysisRequest{
		System:      describeSystem,
		Prompt:      describePrompt,
		Image:       image,
		MaxTokens:   400,
		Temperature: 0.3,
	})
	if err != nil {
		return "", "", fmt.Errorf("visual description failed: %w", err)
	}

	// A refused description is not fatal; fall back to an abstract one and
	// let the matching step decide.
	if isRefusal(description) {
		logger.Warnf("Visual description was refused, using fallback description")
		description = fallbackDescription
	}

	answer, err := d.api.AnalyzeImage(ctx, vision.AnalysisRequest{
		System:      matchSystem,
		Prompt:      fmt.Sprintf(matchPromptFormat, description),
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		return "", "", fmt.Errorf("breed matching failed: %w", err)
	}

	if answer == "" || isRefusal(answer) {
		return "", "", fmt.Errorf("%w: %s", ErrContentPolicyRefusal, excerpt(answer, 100))
	}

	breed, reasoning := parseBreedAnswer(answer)
	if breed == "" {
		logger.Warnf("BREED marker not found in answer, scanning for known breeds")
		breed, reasoning = scanForBreed(answer)
	}

	if len(breed) < 2 {
		return "", "", fmt.Errorf("%w: could not determine breed from analysis: %s", ErrInvalidBreed, excerpt(answer, 200))
	}
	if len(breed) > MaxBreedLength || isRefusal(breed) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidBreed, excerpt(breed, 100))
	}

	if reasoning == "" {
		reasoning = defaultReasoning
	}

	logger.Infof("Detected breed %q", breed)
	return breed, reasoning, nil
}

// parseBreedAnswer extracts the BREED: and REASONING: marker lines.
func parseBreedAnswer(answer string) (breed, reasoning string) {
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "BREED:") {
			breed = strings.TrimSpace(strings.TrimPrefix(line, "BREED:"))
		} else if strings.HasPrefix(line, "REASONING:") {
			reasoning = strings.TrimSpace(strings.TrimPrefix(line, "REASONING:"))
		}
	}
	return breed, reasoning
}

// scanForBreed looks for any reference breed inside free text. The reasoning
// becomes the text surrounding the first match.
func scanForBreed(answer string) (breed, reasoning string) {
	lower := strings.ToLower(answer)
	for _, candidate := range referenceBreeds {
		idx := strings.Index(lower, strings.ToLower(candidate))
		if idx < 0 {
			continue
		}
		start := idx - 50
		if start < 0 {
			start = 0
		}
		end := idx + 200
		if end > len(answer) {
			end = len(answer)
		}
		return candidate, strings.TrimSpace(answer[start:end])
	}
	return "", ""
}

func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range refusalKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
