package stream

import (
	"hash/fnv"

	"github.com/andreyxaxa/Product-Composite/pkg/types/errs"
)

// Route maps a key onto a partition with an FNV-1a hash. Identical keys land
// on the identical partition for as long as the partition count holds;
// changing the count invalidates prior placement.
func Route(key string, partitions int) int {
	if partitions <= 1 {
		return 0
	}

	h := fnv.New32a()
	h.Write([]byte(key))

	return int(h.Sum32() % uint32(partitions))
}

// KeySelector picks the routing key from an envelope. The supported
// partition-key-expression values are "key" (default) and "type".
type KeySelector func(env Envelope) string

func SelectorFor(expression string) (KeySelector, error) {
	switch expression {
	case "", "key":
		return func(env Envelope) string { return env.Key }, nil
	case "type":
		return func(env Envelope) string { return string(env.Type) }, nil
	default:
		return nil, errs.Newf(errs.KindInvalidInput, "stream - SelectorFor - unsupported partition key expression %q", expression)
	}
}
