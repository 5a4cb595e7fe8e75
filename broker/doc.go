// Package broker implements the host side of the bric message bus.
//
// A Broker listens on the host document for envelopes posted by child
// contexts. Message channel envelopes subscribe a frame to a topic,
// unsubscribe it, or publish an event that is relayed to every other frame
// subscribed to that topic. View channel envelopes resize the frame element of
// the sender.
//
//	b := broker.New(doc, broker.TargetOrigin("https://bric.example.com"))
//	if err := b.Initialize(ctx); err != nil {
//		return err
//	}
//	defer b.Dispose()
package broker
