package metrics

import "go.uber.org/fx"

// Module exposes metrics registry as both concrete type and Recorder.
var Module = fx.Provide(
	New,
	func(r *Registry) Recorder { return r },
)
