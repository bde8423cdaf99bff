package s2store

import "github.com/datatrails/go-datatrails-common/logger"

type readerOptions struct {
	log     logger.Logger
	useMmap bool
}

type ReaderOption func(*readerOptions)

// WithMmap memory maps the container and serves suffix tables as zero-copy
// views of the mapping.
func WithMmap() ReaderOption {
	return func(o *readerOptions) {
		o.useMmap = true
	}
}

func WithReaderLogger(log logger.Logger) ReaderOption {
	return func(o *readerOptions) {
		o.log = log
	}
}

type writerOptions struct {
	log logger.Logger
}

type WriterOption func(*writerOptions)

func WithWriterLogger(log logger.Logger) WriterOption {
	return func(o *writerOptions) {
		o.log = log
	}
}
