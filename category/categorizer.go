package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Generator is a text-generation backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is the outcome of classifying one event.
type Result struct {
	Category Category
	// Raw is the trimmed model output, empty when the call failed.
	Raw string
	// Err is set when the generator failed and Category fell back to Other.
	Err error
}

// Degraded reports whether the category is a fallback after a failed call.
func (r Result) Degraded() bool {
	return r.Err != nil
}

// Categorizer classifies events with one Generator call each.
type Categorizer struct {
	gen    Generator
	logger *log.Logger
}

// NewCategorizer returns a Categorizer. A nil logger uses the package default.
func NewCategorizer(gen Generator, logger *log.Logger) *Categorizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Categorizer{gen: gen, logger: logger}
}

// Classify never fails: a generator error yields Other with Err set.
func (c *Categorizer) Classify(ctx context.Context, title, description string) Result {
	text, err := c.gen.Generate(ctx, Prompt(title, description))
	if err != nil {
		c.logger.Warn("classification failed, using fallback", "title", title, "category", Other, "err", err)
		return Result{Category: Other, Err: fmt.Errorf("generate: %w", err)}
	}
	res := Result{Category: Normalize(text), Raw: strings.TrimSpace(text)}
	if !Valid(res.Raw) {
		c.logger.Debug("unrecognized model answer", "title", title, "raw", res.Raw, "category", res.Category)
	}
	return res
}
