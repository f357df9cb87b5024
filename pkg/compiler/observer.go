package compiler

import (
	"github.com/openfroyo/singletons/pkg/engine"
	"github.com/openfroyo/singletons/pkg/telemetry"
)

// passObserver forwards engine activity to metrics and events.
type passObserver struct {
	compilationID string
	metrics       *telemetry.Metrics
	events        *telemetry.EventPublisher
}

func (o *passObserver) ObserveDeclaration(item engine.ItemResult) {
	o.metrics.RecordDeclaration(string(item.Flavor), string(item.Outcome))

	switch item.Outcome {
	case engine.OutcomeDeclared:
		if o.events != nil {
			_ = o.events.PublishDeclaration(o.compilationID, item.ID.String(), string(item.Flavor), item.Depth)
		}
	case engine.OutcomeFailed:
		code := engine.ErrorCode(item.Err)
		o.metrics.RecordItemError(code)
		if o.events != nil && item.Err != nil {
			_ = o.events.PublishItemFailed(o.compilationID, item.Input, code, item.Err.Error())
		}
	}
}

func (o *passObserver) ObserveLookup(tier, _ string, found bool) {
	o.metrics.RecordLookup(tier, found)
}

var _ engine.Observer = (*passObserver)(nil)
