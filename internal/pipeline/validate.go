package pipeline

import (
	"context"

	"github.com/mentorboxai/api/internal/config"
	"github.com/mentorboxai/api/internal/model"
)

// ValidationOutcome is the result of the validation loop
type ValidationOutcome struct {
	Code     string
	Passed   bool
	Attempts int
	Metrics  model.Document
}

// ValidateAndFix asks the model to assess code up to maxAttempts times,
// adopting its proposed fix after each failing attempt. Every gateway or
// parse failure counts as a failing attempt that leaves the code unchanged;
// only context cancellation ends the loop with an error. Metrics are those of
// the last attempt.
func (s *Stages) ValidateAndFix(ctx context.Context, code string, maxAttempts int, concept string) (ValidationOutcome, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	out := ValidationOutcome{Code: code}
	for out.Attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts++

		text, err := s.call(ctx, config.StageValidate, buildValidationPrompt(out.Code, concept))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.Passed, out.Metrics = false, nil
			continue
		}

		doc := ParseJSON(text)
		if len(doc) == 0 {
			s.log.Debug().Int("attempt", out.Attempts).Msg("validation response unparseable")
			out.Passed, out.Metrics = false, nil
			continue
		}

		out.Passed = boolField(doc, "validation_passed", false)
		out.Metrics = docField(doc, "metrics")
		if out.Passed {
			break
		}
		if fixed := ExtractCode(stringField(doc, "fixed_code")); fixed != "" {
			out.Code = fixed
		}
	}

	s.metrics.ValidationAttempts(out.Attempts)
	return out, nil
}
