package stream

import "github.com/andreyxaxa/Product-Composite/pkg/types/errs"

var (
	ErrTopicNotFound     = errs.New(errs.KindNotFound, "topic not found")
	ErrPartitionConflict = errs.New(errs.KindInvalidInput, "topic already exists with a different partition count")
	ErrBrokerClosed      = errs.New(errs.KindUnavailable, "broker is closed")
	ErrDispatcherClosed  = errs.New(errs.KindUnavailable, "dispatcher is shut down")
)
