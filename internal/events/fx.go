package events

import "go.uber.org/fx"

var Module = fx.Module("events",
	fx.Provide(
		NewOutbox,
		func(o *Outbox) Bus { return o },
		NewSink,
		NewRelay,
	),
)
