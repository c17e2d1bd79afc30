package event

// Publisher is the boundary contract between producers (resource
// monitor, idle machine, telemetry ingest, supervisor) and the
// broadcaster: producers never hold a reference to the peer set,
// only to this interface.
type Publisher interface {
	// Publish fans an event out to every connected subscriber. It must
	// never block a producer for more than a single failed send per
	// peer: a slow subscriber is dropped, never waited on.
	Publish(e Event)
}

// PublisherFunc adapts a function to a Publisher, used by tests that want
// to capture published events without standing up a real broadcaster.
type PublisherFunc func(Event)

// Publish implements Publisher.
//
// Params:
//   - e: the event to publish.
func (f PublisherFunc) Publish(e Event) { f(e) }
