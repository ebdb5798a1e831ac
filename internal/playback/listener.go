package playback

// Listener receives controller notifications. Methods run on the controller
// goroutine in the order the changes happen; they must return quickly and
// must not call back into the Controller.
type Listener interface {
	// CurrentImageChanged reports a newly displayed record and its index in
	// the play order before the cursor moved past it. reversed is set when
	// the record was reached by stepping backwards.
	CurrentImageChanged(rec *Record, index int, reversed bool)
	AutoplayStateChanged(on bool)
	QueueReplaced(items []*Record)
	// QueueReordered reports a new play order of the same records, after
	// shuffle is toggled.
	QueueReordered(items []*Record)
	DecodeFailed(rec *Record, err error)
}

// NopListener ignores every notification. Embed it to implement only the
// methods you need.
type NopListener struct{}

func (NopListener) CurrentImageChanged(*Record, int, bool) {}
func (NopListener) AutoplayStateChanged(bool)              {}
func (NopListener) QueueReplaced([]*Record)                {}
func (NopListener) QueueReordered([]*Record)               {}
func (NopListener) DecodeFailed(*Record, error)            {}
