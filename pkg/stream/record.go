package stream

import "time"

// HeaderEventID names the record header carrying the unique id stamped on
// every published record. Publisher retries reuse the same id, so idempotent
// consumers can deduplicate.
const HeaderEventID = "event_id"

// Record is a routed envelope at rest in a partition log.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Time      time.Time
}
