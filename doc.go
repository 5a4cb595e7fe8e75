/*
Package bricbus is a publish/subscribe message bus for widgets that live in
isolated browsing contexts of one host page.

Each widget ("bric") runs in its own frame and talks to the others only by
posting messages. Inside a frame, a pubsub.Remote dispatcher delivers events
to local subscribers and forwards them to the host. In the host, a
broker.Broker keeps track of which frames subscribed to which topics and
relays every publish to the interested frames, never back to the sender. A
separate view channel lets a frame ask the host to resize its element.

Packages:

  - window: what a browsing context looks like to Go (Window, EventTarget, MessageEvent)
  - wire: the JSON envelope codec, modern and legacy shapes, and its JSON schema
  - pubsub: the in-context Dispatcher and the frame side Remote dispatcher
  - broker: FrameRegistry, channel Router, Broker and a Prometheus collector
  - page: an in-memory host document whose contexts run their own event loops
  - pkg/natsx: the same contexts reachable over NATS
  - submission: request/response correlation for answers sent to a scoring backend

Host wires a page, its broker and the frame dispatchers together:

	host := bricbus.NewHost()
	defer host.Close()

	host.AddFrame("ALPHA")
	host.AddFrame("BETA")
	if err := host.Start(ctx); err != nil {
		return err
	}

	beta, _ := host.Remote(ctx, "BETA")
	beta.SubscribeFunc("ping", func(ctx context.Context, topic string, details any) {
		fmt.Println(details)
	})

	alpha, _ := host.Remote(ctx, "ALPHA")
	alpha.Publish(ctx, "ping", map[string]any{"msg": "hi"})
*/
package bricbus
