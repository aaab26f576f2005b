package events

const (
	blockFlag     = "block"
	extrinsicFlag = "extrinsic"
)

var (
	params = &eventsParams{}
)

type eventsParams struct {
	blockRaw  string
	extrinsic int64
}

// filtered reports whether a single extrinsic was asked for
func (ep *eventsParams) filtered() bool {
	return ep.extrinsic >= 0
}
