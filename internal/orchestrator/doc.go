// Package orchestrator turns a stream of selection changes into exactly one
// authoritative plot.
//
// # Overview
//
// Users change datasets, statistics, plot kinds and filters faster than the
// backend can answer. The orchestrator coalesces those changes, submits one
// request per settled selection and follows it through to a rendered
// surface, discarding anything that was overtaken on the way.
//
// # Pipeline
//
//	event → Debouncer → Sequencer.Next → Requester.Submit
//	                                       ├─ cache hit ───────────┐
//	                                       └─ task → Poller.Poll ──┤
//	                                                               ↓
//	                                           Attacher.Attach (per surface)
//
// In facet mode FanOut runs the submit/poll leg once per facet and commits
// the ordered aggregate only when every facet has settled.
//
// # Staleness
//
// Every generation gets a strictly increasing id from the Sequencer. Shared
// state (cached results, surface bindings, published events) is only touched
// through Sequencer.Apply, which runs the effect under the sequencer's lock
// if and only if the id is still current. In-flight HTTP calls are never
// aborted; their answers are dropped on arrival. Timers (poll backoff,
// readiness retries) are cancelled through the generation's context.
package orchestrator
