package gemini_ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"golang-object-generation/internal/config"
	"golang-object-generation/pkg/ratelimit"
)

// CodeGenerator is the model collaborator: it turns an object description
// into a procedural scene-construction program.
type CodeGenerator interface {
	GenerateObjectProgram(ctx context.Context, req ProgramRequest) (string, error)
}

type ProgramRequest struct {
	ObjectName        string
	ObjectDescription string
	// LanguageModel overrides the configured default when non-empty.
	LanguageModel string
}

type Client struct {
	config  *config.GeminiConfig
	log     *logrus.Logger
	client  *genai.Client
	limiter *ratelimit.GeminiRateLimiter
}

func NewClient(cfg *config.GeminiConfig, log *logrus.Logger, genClient *genai.Client, limiter *ratelimit.GeminiRateLimiter) *Client {
	return &Client{
		config:  cfg,
		log:     log,
		client:  genClient,
		limiter: limiter,
	}
}

func (c *Client) GenerateObjectProgram(ctx context.Context, req ProgramRequest) (string, error) {
	model := req.LanguageModel
	if model == "" {
		model = c.config.Model
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to acquire Gemini request slot: %w", err)
	}

	prompt := c.buildObjectProgramPrompt(req.ObjectName, req.ObjectDescription)

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.config.RequestTemperature)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get program from Gemini AI: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from Gemini AI for model %s", model)
	}

	code, err := ExtractCodeFromText(text)
	if err != nil {
		return "", fmt.Errorf("failed to extract program from Gemini AI response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"model":      model,
		"code_bytes": len(code),
	}).Debug("Generated object program")

	return code, nil
}

func (c *Client) buildObjectProgramPrompt(objectName, objectDescription string) string {
	return fmt.Sprintf(`You write JavaScript programs that build 3D objects with the "scene" module.

Target object: %s
Description: %s

API available inside the sandbox:
  const scene = require("scene");
  const s = scene.createScene();
  const mesh = scene.box({width, height, depth});       // also: sphere({radius, segments}), cylinder({radiusTop, radiusBottom, height, segments}), cone({radius, height, segments}), plane({width, depth}), torus({radius, tube, segments})
  mesh.setPosition(x, y, z); mesh.setRotation(rx, ry, rz); mesh.setScale(sx, sy, sz);
  mesh.setMaterial({color: "#rrggbb", metallic: 0.0, roughness: 0.8, name: "paint"});
  s.add(mesh);
  finish(s.toGLB());                                    // call exactly once when done

Rules:
1. Build the object out of the primitives above; compose multiple meshes for detail.
2. Use console.log sparingly for progress notes.
3. Do not use any browser, Node.js, or network API; only the scene module and finish().
4. End by calling finish(s.toGLB()) exactly once.
5. Respond with a single JavaScript code block and nothing else.`,
		objectName, objectDescription)
}

// ExtractCodeFromText pulls the program out of a fenced code block. Models
// sometimes skip the fence, so bare responses pass through unchanged.
func ExtractCodeFromText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)

	start := strings.Index(trimmed, "```")
	if start == -1 {
		return trimmed, nil
	}

	rest := trimmed[start+3:]
	if newline := strings.Index(rest, "\n"); newline != -1 {
		lang := strings.TrimSpace(rest[:newline])
		if lang == "" || isCodeFenceLang(lang) {
			rest = rest[newline+1:]
		}
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return "", fmt.Errorf("unterminated code block in response")
	}

	code := strings.TrimSpace(rest[:end])
	if code == "" {
		return "", fmt.Errorf("empty code block in response")
	}
	return code, nil
}

func isCodeFenceLang(lang string) bool {
	switch strings.ToLower(lang) {
	case "js", "javascript", "ecmascript", "mjs":
		return true
	}
	return false
}
