// Package notify defines how emergency classifications reach caregivers.
//
// Delivery (push, SMS, pager integration) is a deployment concern handled by
// an external collaborator; this package only fixes the contract and ships a
// structured-log implementation so a bare deployment still surfaces alerts
// somewhere observable.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

// Alert is one emergency event raised by the classifier.
type Alert struct {
	// ReferenceID is the classification ID the alert originates from.
	ReferenceID string

	// Intent is the intent that fired the alert. In the current pipeline
	// this is always EMERGENCY; the field exists so transcripts and audit
	// trails stay self-describing.
	Intent intent.Intent

	// Confidence is the calibrated confidence of the classification.
	Confidence float64

	// FusedScore is the raw fused score that crossed the emergency
	// threshold. It can exceed Confidence: the override deliberately fires
	// before calibration would allow auto-confirmation.
	FusedScore float64

	// At is when the classification completed.
	At time.Time
}

// Notifier delivers alerts to whoever is on call. Implementations must be
// safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to a structured logger at Warn level. It is the
// default Notifier when no delivery integration is configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a [LogNotifier] over log. A nil log uses
// [slog.Default].
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

// Notify implements [Notifier].
func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	n.log.WarnContext(ctx, "emergency alert",
		"reference_id", a.ReferenceID,
		"intent", a.Intent,
		"confidence", a.Confidence,
		"fused_score", a.FusedScore,
		"at", a.At,
	)
	return nil
}
