package services

import (
	"context"
	"fmt"

	"github.com/shaggydog-ai/shaggydog/internal/logger"
	"github.com/shaggydog-ai/shaggydog/internal/vision"
)

// DefaultImageSize is the requested output size for every generated stage
const DefaultImageSize = "1024x1024"

// Generator produces the per-stage transformation images. Each stage is one
// generation call followed by a bounded fetch of the resulting bytes; a
// failed stage never affects its siblings.
type Generator struct {
	api  vision.API
	size string
}

// NewGenerator creates a new generator instance
func NewGenerator(api vision.API) *Generator {
	return &Generator{api: api, size: DefaultImageSize}
}

// StagePrompt builds the prompt for one stage. It is a pure function of
// (stageIndex, totalStages, breed): the first stage shows subtle canine
// traits, middle stages a pronounced part-human transformation, and the last
// stage a clean breed portrait with no human subject. The texts differ per
// stage, so no two stages submit the same prompt.
func StagePrompt(stageIndex, totalStages int, breed string) string {
	switch {
	case stageIndex == totalStages-1:
		return fmt.Sprintf("Beautiful professional portrait of a %s dog with expressive eyes and personality, captured in high quality photography. The dog has a friendly, approachable expression that would match a human portrait. Studio lighting, photorealistic, detailed fur texture.", breed)
	case stageIndex == 0:
		return fmt.Sprintf("Professional portrait photography of a human face with subtle %s dog characteristics - slightly elongated snout, pointier ears, and dog-like expressive eyes. The person still looks human but with gentle canine features. High quality, photorealistic, studio lighting.", breed)
	default:
		prompt := fmt.Sprintf("Portrait showing a person mid-transformation into a %s dog - more pronounced dog features with a longer snout, floppy or pointed ears matching the breed, and fur texture beginning to appear on the face and neck. Still maintains human-like proportions and expression. Photorealistic style.", breed)
		if totalStages > 3 {
			// Keep prompts distinct when more than one middle stage exists.
			prompt += fmt.Sprintf(" Transformation step %d of %d.", stageIndex+1, totalStages)
		}
		return prompt
	}
}

// GenerateStage produces the image bytes for one stage slot.
func (g *Generator) GenerateStage(ctx context.Context, stageIndex, totalStages int, breed string) ([]byte, error) {
	prompt := StagePrompt(stageIndex, totalStages, breed)

	url, err := g.api.GenerateImage(ctx, prompt, g.size)
	if err != nil {
		return nil, fmt.Errorf("stage %d generation failed: %w", stageIndex, err)
	}

	data, err := g.api.FetchImage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("stage %d image fetch failed: %w", stageIndex, err)
	}

	logger.Debugf("Stage %d generated (%d bytes)", stageIndex, len(data))
	return data, nil
}
