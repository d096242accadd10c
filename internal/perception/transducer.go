package perception

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"plannerd/pkg/goap"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const goalSystemPrompt = `You translate a plain language request into a goal for an automated planner.
Respond with a single JSON object and nothing after it:
{"name": "<short-kebab-case-name>", "desired_facts": {"<fact_key>": <string, integer, or boolean>}, "priority": <integer 0-100>}
Fact values must be strings, integers, or booleans. Never use fractional numbers, null, or nested objects.
Prefer fact keys from the known vocabulary; invent a key only when nothing in the vocabulary fits.
Known vocabulary: %s`

const relaxSystemPrompt = `A planner could not reach the goal below. Choose which desired facts to give up so a weaker version of the goal becomes reachable.
You may only drop facts, never add or change them, and at least one fact must remain.
Respond with a single JSON object and nothing after it:
{"drop": ["<fact_key>", ...]}`

// Transducer converts natural language into typed goals and relaxes
// goals that turned out to be unreachable.
type Transducer struct {
	client LLMClient
	logger *zap.Logger
}

// NewTransducer creates a transducer over the given completion client.
func NewTransducer(client LLMClient, logger *zap.Logger) *Transducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transducer{client: client, logger: logger}
}

type goalEnvelope struct {
	Name         string                 `json:"name"`
	DesiredFacts map[string]interface{} `json:"desired_facts"`
	Priority     int                    `json:"priority"`
}

type relaxEnvelope struct {
	Drop []string `json:"drop"`
}

// ParseGoal turns a plain language request into a goal. The vocabulary
// lists fact keys the action catalogue knows about; it steers the model
// toward keys that actions can actually establish.
func (t *Transducer) ParseGoal(ctx context.Context, input string, vocabulary []string) (goap.GoalState, error) {
	if strings.TrimSpace(input) == "" {
		return goap.GoalState{}, fmt.Errorf("empty goal request")
	}

	system := fmt.Sprintf(goalSystemPrompt, strings.Join(vocabulary, ", "))
	raw, err := t.client.CompleteWithSystem(ctx, system, input)
	if err != nil {
		return goap.GoalState{}, fmt.Errorf("goal completion failed: %w", err)
	}

	jsonStr := extractLastJSON(raw)
	if jsonStr == "" {
		return goap.GoalState{}, fmt.Errorf("no JSON object in goal response")
	}

	var envelope goalEnvelope
	if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
		return goap.GoalState{}, fmt.Errorf("failed to parse goal response: %w", err)
	}
	if len(envelope.DesiredFacts) == 0 {
		return goap.GoalState{}, fmt.Errorf("goal response contains no desired facts")
	}

	desired := make(map[string]goap.Value, len(envelope.DesiredFacts))
	for key, rawValue := range envelope.DesiredFacts {
		v, err := goap.ValueOf(rawValue)
		if err != nil {
			return goap.GoalState{}, fmt.Errorf("goal fact %q: %w", key, err)
		}
		desired[key] = v
	}

	name := strings.TrimSpace(envelope.Name)
	if name == "" {
		name = "goal-" + uuid.New().String()[:8]
	}

	t.logger.Debug("parsed goal",
		zap.String("name", name),
		zap.Int("facts", len(desired)),
		zap.Int("priority", envelope.Priority))

	goal := goap.NewGoal(name, desired)
	goal.Priority = float64(envelope.Priority)
	return goal, nil
}

// RelaxGoal asks the model which desired facts to give up after planning
// failed. Only drops are honored: keys the model did not list, keys it
// invented, and any value edits are all ignored, so the relaxed goal is
// always a strict subset of the original.
func (t *Transducer) RelaxGoal(ctx context.Context, goal goap.GoalState, reason string) (goap.GoalState, error) {
	if len(goal.Desired) <= 1 {
		return goap.GoalState{}, fmt.Errorf("goal %q cannot be relaxed further", goal.Name)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Goal %q was unreachable", goal.Name))
	if strings.TrimSpace(reason) != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", reason))
	}
	sb.WriteString(".\nDesired facts:\n")
	for _, key := range sortedKeys(goal.Desired) {
		sb.WriteString(fmt.Sprintf("  %s = %s\n", key, goal.Desired[key]))
	}

	raw, err := t.client.CompleteWithSystem(ctx, relaxSystemPrompt, sb.String())
	if err != nil {
		return goap.GoalState{}, fmt.Errorf("relax completion failed: %w", err)
	}

	jsonStr := extractLastJSON(raw)
	if jsonStr == "" {
		return goap.GoalState{}, fmt.Errorf("no JSON object in relax response")
	}
	var envelope relaxEnvelope
	if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
		return goap.GoalState{}, fmt.Errorf("failed to parse relax response: %w", err)
	}

	drop := make(map[string]bool, len(envelope.Drop))
	dropped := 0
	for _, key := range envelope.Drop {
		if _, ok := goal.Desired[key]; ok && !drop[key] {
			drop[key] = true
			dropped++
		}
	}
	if dropped == 0 {
		return goap.GoalState{}, fmt.Errorf("relax response dropped no desired facts")
	}
	if dropped == len(goal.Desired) {
		return goap.GoalState{}, fmt.Errorf("relax response dropped every desired fact")
	}

	desired := make(map[string]goap.Value, len(goal.Desired)-dropped)
	for key, v := range goal.Desired {
		if !drop[key] {
			desired[key] = v
		}
	}

	name := goal.Name
	if !strings.HasSuffix(name, "-relaxed") {
		name += "-relaxed"
	}

	t.logger.Info("relaxed goal",
		zap.String("name", name),
		zap.Int("dropped", dropped),
		zap.Int("remaining", len(desired)))

	relaxed := goap.NewGoal(name, desired)
	relaxed.Priority = goal.Priority
	return relaxed, nil
}

// Vocabulary collects every fact key the catalogue mentions, sorted and
// deduplicated, for use in goal parsing prompts.
func Vocabulary(actions []goap.Action) []string {
	seen := make(map[string]bool)
	for _, action := range actions {
		for key := range action.Preconditions {
			seen[key] = true
		}
		for key := range action.Effects {
			seen[key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]goap.Value) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// extractLastJSON finds the last valid JSON object in a string. Thinking
// models intersperse prose with the answer; the JSON object is expected
// to come last.
func extractLastJSON(s string) string {
	cleaned := stripMarkdownCodeFences(s)

	end := strings.LastIndex(cleaned, "}")
	if end == -1 {
		return ""
	}

	// Scan backwards to the matching opening brace.
	balance := 0
	for i := end; i >= 0; i-- {
		switch cleaned[i] {
		case '}':
			balance++
		case '{':
			balance--
		}
		if balance == 0 && cleaned[i] == '{' {
			candidate := cleaned[i : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
			return ""
		}
	}
	return ""
}

// stripMarkdownCodeFences removes markdown code fence wrapping.
// Handles ```json, bare ```, and other language specifiers.
func stripMarkdownCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```") {
		firstNewline := strings.Index(trimmed, "\n")
		if firstNewline != -1 {
			lastFence := strings.LastIndex(trimmed, "```")
			if lastFence > firstNewline {
				return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
			}
		}
	}
	return s
}
