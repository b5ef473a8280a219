// Package stream fans terminal output out to subscribers.
//
// A Hub is the terminal.Sink installed in the session registry. For every
// segment it keeps a replay ring of recent output and a set of subscribers,
// each with a bounded queue. Publishing never blocks: a subscriber whose
// queue is full is evicted with ErrSlowConsumer and the rest carry on.
//
// State is keyed by segment id and stamped with the generation of the
// session that produced it. Events and releases from an older generation
// are dropped, so a closed session cannot leak into its successor.
//
//	hub := stream.NewHub(stream.Options{}, logger)
//	reg := terminal.NewRegistry(opts, hub, logger)
//
//	sess, _, _ := reg.Create("seg-1")
//	sub := hub.Subscribe(sess.Source())
//	defer sub.Close()
//	fmt.Print(sub.Replay)
//	for ev := range sub.Events() {
//		...
//	}
package stream
