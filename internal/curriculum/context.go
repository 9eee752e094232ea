package curriculum

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Section headers of an assembled context.
const (
	HeaderCurrent  = "CURRENT TOPIC (FULL DETAIL)"
	HeaderPrevious = "PREVIOUS TOPIC (CONTEXT)"
	HeaderUpcoming = "UPCOMING TOPIC (PREVIEW)"
)

const (
	currentSharePercent   = 60
	neighborsSharePercent = 30
	maxSummaries          = 3
	briefObjectives       = 2
	ellipsis              = "..."
)

// EstimateTokens approximates token count as characters / 4.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// TruncateToBudget returns text unchanged if it fits budget, otherwise its
// first budget*4-3 characters followed by an ellipsis.
func TruncateToBudget(text string, budget int) string {
	if EstimateTokens(text) <= budget {
		return text
	}
	keep := budget*4 - len(ellipsis)
	if keep <= 0 {
		return ""
	}
	i, n := 0, 0
	for i < len(text) && n < keep {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
		n++
	}
	return text[:i] + ellipsis
}

// AssembleContext builds the foveated context for topic: full detail for the
// topic itself, a brief view of its neighbors in the active curriculum. Each
// section is truncated to its own share of tokenBudget.
func (e *Engine) AssembleContext(topic *Topic, tokenBudget int) string {
	if topic == nil || tokenBudget <= 0 {
		return ""
	}

	var prev, next *Topic
	e.mu.Lock()
	if e.active != nil {
		if _, i, ok := e.active.TopicByID(topic.ID); ok {
			if i > 0 {
				prev = cloneTopic(e.active.Topics[i-1])
			}
			if i+1 < len(e.active.Topics) {
				next = cloneTopic(e.active.Topics[i+1])
			}
		}
	}
	e.mu.Unlock()

	return assemble(topic, prev, next, tokenBudget)
}

func assemble(topic, prev, next *Topic, tokenBudget int) string {
	currentBudget := tokenBudget * currentSharePercent / 100
	neighborBudget := tokenBudget * neighborsSharePercent / 100 / 2

	var sections []string
	if s := TruncateToBudget(fullSection(topic), currentBudget); s != "" {
		sections = append(sections, s)
	}
	if prev != nil {
		if s := TruncateToBudget(briefSection(HeaderPrevious, prev), neighborBudget); s != "" {
			sections = append(sections, s)
		}
	}
	if next != nil {
		if s := TruncateToBudget(briefSection(HeaderUpcoming, next), neighborBudget); s != "" {
			sections = append(sections, s)
		}
	}
	return strings.Join(sections, "\n\n")
}

func fullSection(t *Topic) string {
	var b strings.Builder
	b.WriteString(HeaderCurrent)
	b.WriteString("\nTopic: ")
	b.WriteString(t.Title)
	b.WriteString("\nDepth: ")
	b.WriteString(string(t.Depth))
	if d := t.Depth.Directive(); d != "" {
		b.WriteString("\nStyle: ")
		b.WriteString(d)
	}
	if o := strings.TrimSpace(t.Outline); o != "" {
		b.WriteString("\nOutline:\n")
		b.WriteString(o)
	}
	if len(t.Objectives) > 0 {
		b.WriteString("\nLearning objectives:")
		for _, o := range t.Objectives {
			b.WriteString("\n- ")
			b.WriteString(o)
		}
	}

	n := 0
	for _, d := range t.Documents {
		if n == maxSummaries {
			break
		}
		s := strings.TrimSpace(d.Summary)
		if s == "" {
			continue
		}
		if n == 0 {
			b.WriteString("\nReference material:")
		}
		fmt.Fprintf(&b, "\n- %s: %s", d.Title, s)
		n++
	}
	return b.String()
}

func briefSection(header string, t *Topic) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\nTopic: ")
	b.WriteString(t.Title)
	objectives := t.Objectives
	if len(objectives) > briefObjectives {
		objectives = objectives[:briefObjectives]
	}
	if len(objectives) > 0 {
		b.WriteString("\nObjectives: ")
		b.WriteString(strings.Join(objectives, "; "))
	}
	return b.String()
}

// ContextForTopic assembles context for a topic of the active curriculum.
// Errors wrap ErrContextGeneration; callers should continue without context.
func (e *Engine) ContextForTopic(ctx context.Context, topicID string, tokenBudget int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrContextGeneration, err)
	}

	e.mu.Lock()
	t, err := e.findLocked(topicID)
	if err == nil {
		t = cloneTopic(t)
	}
	e.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrContextGeneration, err)
	}
	return e.AssembleContext(t, tokenBudget), nil
}

// ContextForModel assembles context for the current topic using the model's tier budget.
func (e *Engine) ContextForModel(ctx context.Context, model string) (string, error) {
	t, ok := e.CurrentTopic()
	if !ok {
		return "", fmt.Errorf("%w: %w", ErrContextGeneration, ErrNoActiveCurriculum)
	}
	return e.ContextForTopic(ctx, t.ID, BudgetForModel(model))
}
