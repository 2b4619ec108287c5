package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sfotel "github.com/Strob0t/sketchforge/internal/adapter/otel"
	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
)

// DefaultModel is the model of the built-in assistant creation profile.
const DefaultModel = "gpt-4o"

// Assistant is the conversational identity a workspace transpiles through.
// Its remote id is resolved once by Initialize.
type Assistant struct {
	platform     aiplatform.Platform
	ids          *IdentityResolver
	name         string
	pollInterval time.Duration
	resultField  string

	id    string
	ready bool
}

// NewAssistant creates an Assistant bound to name. resultField is the reply JSON
// field holding the generated code.
func NewAssistant(p aiplatform.Platform, ids *IdentityResolver, name string, pollInterval time.Duration, resultField string) *Assistant {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Assistant{
		platform:     p,
		ids:          ids,
		name:         name,
		pollInterval: pollInterval,
		resultField:  resultField,
	}
}

// Name returns the bound assistant name.
func (a *Assistant) Name() string { return a.name }

// ID returns the resolved remote id, empty until Initialize succeeds.
func (a *Assistant) ID() string { return a.id }

// Ready reports whether the remote identity was resolved.
func (a *Assistant) Ready() bool { return a.ready }

// Initialize resolves the remote identity by name.
func (a *Assistant) Initialize(ctx context.Context) error {
	id, err := a.ids.Resolve(ctx, KindAssistant, a.name, assistantLister(a.platform))
	if err != nil {
		return err
	}
	a.id = id
	a.ready = true
	return nil
}

// Transpile runs one exchange with the assistant and returns the generated code.
// A reply that cannot be interpreted yields sketch.TranspileErrorSentinel, not an error.
func (a *Assistant) Transpile(ctx context.Context, content string) (code string, err error) {
	if !a.ready {
		return "", fmt.Errorf("%w: assistant %q", domain.ErrNotReady, a.name)
	}

	ctx, span := sfotel.StartRunSpan(ctx, a.name)
	defer func() { sfotel.EndSpan(span, err) }()

	thread, err := a.platform.CreateThread(ctx, content)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	run, err := a.platform.CreateRun(ctx, thread.ID, a.id)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	run, err = a.waitForRun(ctx, thread.ID, run)
	if err != nil {
		return "", err
	}
	if run.Status != aiplatform.RunCompleted {
		if run.LastError != nil {
			return "", fmt.Errorf("run %s ended %s: %s", run.ID, run.Status, run.LastError.Message)
		}
		return "", fmt.Errorf("run %s ended %s", run.ID, run.Status)
	}

	msgs, err := a.platform.ListMessages(ctx, thread.ID, run.ID)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("run %s produced no messages", run.ID)
	}

	return ExtractCode(latestMessage(msgs), a.resultField), nil
}

func (a *Assistant) waitForRun(ctx context.Context, threadID string, run *aiplatform.Run) (*aiplatform.Run, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for !run.Status.Terminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		next, err := a.platform.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, fmt.Errorf("get run %s: %w", run.ID, err)
		}
		run = next
	}
	return run, nil
}

// latestMessage returns the message with the highest creation time.
// On a tie the later one in the list wins.
func latestMessage(msgs []aiplatform.Message) aiplatform.Message {
	best := msgs[0]
	for _, m := range msgs[1:] {
		if m.CreatedAt >= best.CreatedAt {
			best = m
		}
	}
	return best
}

// ExtractCode reads field from the JSON text of msg. Non-text content, malformed
// JSON and a missing or non-string field all produce sketch.TranspileErrorSentinel.
func ExtractCode(msg aiplatform.Message, field string) string {
	if len(msg.Content) == 0 || msg.Content[0].Type != aiplatform.ContentText {
		return sketch.TranspileErrorSentinel
	}

	var reply map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg.Content[0].Text), &reply); err != nil {
		slog.Warn("assistant reply is not JSON", "message_id", msg.ID, "error", err)
		return sketch.TranspileErrorSentinel
	}

	raw, ok := reply[field]
	if !ok {
		slog.Warn("assistant reply misses result field", "message_id", msg.ID, "field", field)
		return sketch.TranspileErrorSentinel
	}

	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		slog.Warn("assistant result field is not a string", "message_id", msg.ID, "field", field)
		return sketch.TranspileErrorSentinel
	}
	return code
}

// DefaultAssistantParams builds the built-in creation profile: a transpiler assistant
// bound to storeID for retrieval whose replies are constrained to one string field.
func DefaultAssistantParams(name, storeID, resultField string) map[string]any {
	instructions := "You are a transpiler. You receive a file with a @sketch:<name> tag in its content.\n" +
		"The attached files describe how to transpile this metacode to actual code.\n" +
		fmt.Sprintf("Answer with the code in the JSON field %q without any additional text. ", resultField) +
		"Do not wrap the code in any formatting."

	return map[string]any{
		"name":         name,
		"description":  "Sketch assistant for transpiling metacode to actual code.",
		"model":        DefaultModel,
		"instructions": instructions,
		"tools": []any{
			map[string]any{"type": "code_interpreter"},
			map[string]any{"type": "file_search"},
		},
		"tool_resources": map[string]any{
			"file_search": map[string]any{
				"vector_store_ids": []string{storeID},
			},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":        resultField,
				"description": fmt.Sprintf("A JSON object with a single string property %q holding the transpiled code.", resultField),
				"strict":      true,
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						resultField: map[string]any{
							"type":        "string",
							"description": "The code after transpilation.",
						},
					},
					"required":             []string{resultField},
					"additionalProperties": false,
				},
			},
		},
	}
}
