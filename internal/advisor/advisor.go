// Package advisor ranks catalogue actions by semantic similarity to a
// goal. The ranking is advisory output for operators and UIs; the
// planner's search never consults it, so suggestions can be wrong
// without ever making a plan wrong.
package advisor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"plannerd/pkg/goap"

	"go.uber.org/zap"
)

// Embedder turns text into vectors. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Suggestion is one ranked action.
type Suggestion struct {
	ActionID    string
	Description string
	Score       float64
}

// Advisor embeds goal and action descriptions and ranks actions by
// cosine similarity. Action vectors are cached by description text, so
// an unchanged catalogue is embedded once.
type Advisor struct {
	embedder Embedder
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string][]float32
}

// New creates an advisor over the given embedder.
func New(embedder Embedder, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{
		embedder: embedder,
		logger:   logger,
		cache:    make(map[string][]float32),
	}
}

// Suggest returns the k actions most similar to the goal, best first.
// Ties keep catalogue order.
func (a *Advisor) Suggest(ctx context.Context, goal goap.GoalState, actions []goap.Action, k int) ([]Suggestion, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}

	goalVec, err := a.embedder.Embed(ctx, describeGoal(goal))
	if err != nil {
		return nil, fmt.Errorf("embed goal: %w", err)
	}

	texts := make([]string, len(actions))
	for i, action := range actions {
		texts[i] = describeAction(action)
	}
	vectors, err := a.vectorsFor(ctx, texts)
	if err != nil {
		return nil, err
	}

	results := make([]Suggestion, 0, len(actions))
	for i, action := range actions {
		score, err := cosineSimilarity(goalVec, vectors[i])
		if err != nil {
			a.logger.Warn("skipping action with mismatched embedding",
				zap.String("action", action.ID), zap.Error(err))
			continue
		}
		results = append(results, Suggestion{
			ActionID:    action.ID,
			Description: action.Description,
			Score:       score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// vectorsFor returns one vector per text, reading the cache first and
// batch-embedding only the misses.
func (a *Advisor) vectorsFor(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	a.mu.Lock()
	var missing []string
	missingIdx := make(map[string][]int)
	for i, text := range texts {
		if vec, ok := a.cache[text]; ok {
			vectors[i] = vec
			continue
		}
		if _, seen := missingIdx[text]; !seen {
			missing = append(missing, text)
		}
		missingIdx[text] = append(missingIdx[text], i)
	}
	a.mu.Unlock()

	if len(missing) == 0 {
		return vectors, nil
	}

	embedded, err := a.embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("embed actions: %w", err)
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missing))
	}

	a.mu.Lock()
	for j, text := range missing {
		a.cache[text] = embedded[j]
		for _, i := range missingIdx[text] {
			vectors[i] = embedded[j]
		}
	}
	a.mu.Unlock()
	return vectors, nil
}

func describeGoal(goal goap.GoalState) string {
	var sb strings.Builder
	sb.WriteString("goal ")
	sb.WriteString(goal.Name)
	sb.WriteString(":")
	for _, key := range sortedKeys(goal.Desired) {
		sb.WriteString(fmt.Sprintf(" %s=%s", key, goal.Desired[key]))
	}
	return sb.String()
}

func describeAction(action goap.Action) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("action %s (%s)", action.ID, action.AgentRole))
	if action.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(action.Description)
	}
	if len(action.Preconditions) > 0 {
		sb.WriteString("; requires")
		for _, key := range sortedKeys(action.Preconditions) {
			sb.WriteString(fmt.Sprintf(" %s=%s", key, action.Preconditions[key]))
		}
	}
	if len(action.Effects) > 0 {
		sb.WriteString("; yields")
		for _, key := range sortedKeys(action.Effects) {
			sb.WriteString(fmt.Sprintf(" %s=%s", key, action.Effects[key]))
		}
	}
	return sb.String()
}

func sortedKeys(m map[string]goap.Value) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// cosineSimilarity returns a value between -1 and 1, where 1 means
// identical direction. Zero-magnitude vectors score 0.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}
	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i] * b[i])
		aMag += float64(a[i] * a[i])
		bMag += float64(b[i] * b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}
