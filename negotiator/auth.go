package negotiator

import (
	"fmt"
	"strings"

	"gitlab.com/NebulousLabs/errors"
)

type (
	// authStep is one sub-step of an authentication exchange. Token auth
	// is a nested fallback because different mail servers expose token
	// auth through different, non-standardized mechanisms, so every
	// sub-step's outcome is recorded individually instead of being
	// swallowed.
	authStep struct {
		name string
		run  func() error
	}

	// authOutcome describes which sub-step of an auth exchange succeeded
	// and what the sub-steps before it reported.
	authOutcome struct {
		step        string
		subFailures []string
	}
)

// describe renders the outcome for inclusion in a success diagnostic. When
// a fallback path was used this names it, a negotiation that silently
// reports plain success after falling back would mislead the user.
func (o authOutcome) describe() string {
	if len(o.subFailures) == 0 {
		return fmt.Sprintf("authenticated via %s", o.step)
	}
	return fmt.Sprintf("authenticated via %s, after %s", o.step, strings.Join(o.subFailures, ", "))
}

// runAuthSteps executes the given auth sub-steps in order and returns the
// outcome of the first one that succeeds. When all sub-steps fail the
// returned error aggregates every sub-step's diagnostic.
func runAuthSteps(steps []authStep) (authOutcome, error) {
	var subFailures []string
	for _, step := range steps {
		err := step.run()
		if err == nil {
			return authOutcome{step: step.name, subFailures: subFailures}, nil
		}
		subFailures = append(subFailures, fmt.Sprintf("%s: %v", step.name, err))
	}
	return authOutcome{}, errors.New(strings.Join(subFailures, "; "))
}
