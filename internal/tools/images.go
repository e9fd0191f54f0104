package tools

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/media"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// AnalyzeImageTool loads a local image, normalizes it for the vision
// role, and asks the model the caller's question about it.
type AnalyzeImageTool struct {
	session   *Session
	providers Providers
	prompts   PromptSource
	out       io.Writer
}

func NewAnalyzeImageTool(session *Session, opts SpecialistOptions) *AnalyzeImageTool {
	return &AnalyzeImageTool{
		session:   session,
		providers: opts.Providers,
		prompts:   opts.Prompts,
		out:       opts.Out,
	}
}

func (t *AnalyzeImageTool) Name() string { return "analyze_image" }

func (t *AnalyzeImageTool) Description() string {
	return "Analyze a local image file with the vision model. Supports JPEG, PNG, GIF, and WebP."
}

func (t *AnalyzeImageTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Image file path, absolute or relative to the working directory.",
			},
			"question": map[string]any{
				"type":        "string",
				"description": "Optional: what to ask about the image. Defaults to a detailed description.",
			},
		},
		"required": []string{"path"},
	}
}

type analyzeImageInput struct {
	Path     string `json:"path"`
	Question string `json:"question,omitempty"`
}

func (t *AnalyzeImageTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params analyzeImageInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("analyze_image: invalid input: %v", err)
	}

	content, resolved, err := t.session.ReadFile(params.Path)
	if err != nil {
		return "", err
	}

	img, err := media.Normalize(content)
	if err != nil {
		return "", err
	}
	L_info("analyze_image: image prepared", "path", resolved,
		"mime", img.MimeType, "width", img.Width, "height", img.Height, "bytes", img.Size())

	question := strings.TrimSpace(params.Question)
	if question == "" {
		question = "Describe this image in detail."
	}

	return callRole(ctx, roleCall{
		providers: t.providers,
		prompts:   t.prompts,
		out:       t.out,
		name:      "analyze_image",
		role:      config.RoleVision,
		system:    defaultPrompts[config.RoleVision],
		user:      question + "\n\n" + img.DataURL(),
	})
}
