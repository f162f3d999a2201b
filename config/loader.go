package config

// Loader is a source of configuration.
//
// Load unmarshals the source into target and validates it; targets
// implementing a defaults hook get it applied first, so values absent from
// the source keep their documented defaults. Watch registers a callback
// fired whenever the underlying source reports a change; re-reading the
// configuration is the callback's job.
type Loader interface {
	Load(target any) error
	Watch(callback func()) error
}
