package config

import (
	"fmt"
	"strings"
)

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("found %d configuration error(s):\n", len(errs)))
	for i, err := range errs {
		b.WriteString(fmt.Sprintf("  %d. [%s] %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate checks the complete configuration after defaults were applied.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Database.URL == "" {
		errs = append(errs, ValidationError{Field: "database.url", Message: "connection string is required"})
	}
	if c.LLM.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "llm.base_url", Message: "base URL is required"})
	}
	if c.LLM.Model == "" {
		errs = append(errs, ValidationError{Field: "llm.model", Message: "model name is required"})
	}
	if c.Embedding.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "embedding.base_url", Message: "base URL is required"})
	}
	switch c.Embedding.Provider {
	case "multilingual", "openai":
	default:
		errs = append(errs, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown provider %q, expected multilingual or openai", c.Embedding.Provider),
		})
	}
	if c.Pipeline.IntentConfidence < 0 || c.Pipeline.IntentConfidence > 1 {
		errs = append(errs, ValidationError{Field: "pipeline.intent_confidence", Message: "must be within [0,1]"})
	}
	if c.Pipeline.OffTopic < 0 || c.Pipeline.OffTopic > 1 {
		errs = append(errs, ValidationError{Field: "pipeline.off_topic", Message: "must be within [0,1]"})
	}
	if c.Pipeline.QAMatch < 0 || c.Pipeline.QAMatch > 1 {
		errs = append(errs, ValidationError{Field: "pipeline.qa_match", Message: "must be within [0,1]"})
	}
	if c.Pipeline.OffTopic > c.Pipeline.IntentConfidence {
		errs = append(errs, ValidationError{Field: "pipeline.off_topic", Message: "must not exceed pipeline.intent_confidence"})
	}
	if c.Pipeline.TopK < 1 {
		errs = append(errs, ValidationError{Field: "pipeline.top_k", Message: "must be at least 1"})
	}
	if c.Embedding.BatchSize < 1 {
		errs = append(errs, ValidationError{Field: "embedding.batch_size", Message: "must be at least 1"})
	}
	if c.Embedding.Concurrency < 1 {
		errs = append(errs, ValidationError{Field: "embedding.concurrency", Message: "must be at least 1"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
