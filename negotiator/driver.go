package negotiator

import (
	"context"

	"github.com/sirupsen/logrus"
	"gitlab.com/NebulousLabs/errors"
)

type (
	// Executor attempts a single strategy against one endpoint. Exactly
	// one network connection is opened per attempt and connections from
	// failed attempts are always closed before the result is returned.
	Executor interface {
		Attempt(ctx context.Context, strategy Strategy, params ConnectionParameters) AttemptResult
	}

	// Negotiator iterates a strategy catalog in priority order, invoking
	// the executor for each strategy and stopping at the first success.
	// Strategies are attempted strictly sequentially, concurrent probing
	// against the same credential risks server-side lockouts.
	Negotiator struct {
		staticDirection Direction
		staticExecutor  Executor
		staticLogger    *logrus.Entry
	}
)

// NewNegotiator creates a new negotiator for the given direction.
func NewNegotiator(direction Direction, executor Executor, logger *logrus.Logger) *Negotiator {
	return &Negotiator{
		staticDirection: direction,
		staticExecutor:  executor,
		staticLogger:    logger.WithField("module", "Negotiator"),
	}
}

// Negotiate runs the strategy catalog against the given parameters and
// returns a report holding one attempt result per strategy tried. The
// report is complete, on exhaustion it carries every collected diagnostic
// so a human can identify why no strategy worked. A fresh negotiation
// shares no state with a prior one.
func (n *Negotiator) Negotiate(ctx context.Context, params ConnectionParameters) NegotiationReport {
	// convenience variables
	logger := n.staticLogger
	direction := n.staticDirection

	report := NegotiationReport{Direction: direction}

	// invalid parameters are fatal, no strategy could possibly succeed
	if err := params.Validate(); err != nil {
		report.Err = errors.AddContext(err, "invalid connection parameters")
		return report
	}

	catalog := Catalog(direction, params.HasToken())
	for _, strategy := range catalog {
		// cancellation is cooperative, no further strategies are
		// attempted once the caller aborted the negotiation
		if err := ctx.Err(); err != nil {
			logger.Debugf("negotiation aborted before strategy '%v', err: %v", strategy.Name, err)
			break
		}

		logger.Infof("Trying connection method: %v", strategy.Name)
		result := n.staticExecutor.Attempt(ctx, strategy, params)
		report.Attempts = append(report.Attempts, result)

		if result.Succeeded {
			logger.Infof("Success with %v!", strategy.Name)
			report.Succeeded = true
			report.WinningStrategy = strategy.Name
			break
		}
		logger.Infof("Failed with %v: %v", strategy.Name, result.Diagnostic)
	}
	return report
}
