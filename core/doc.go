// Package core contains the face verification domain types, contracts and
// the session orchestrator. Token providers, session transports and stores
// live in their own packages and depend on core, never the other way round.
package core
