package dedupe

// Option configures the in-memory Deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of ids kept. When full the oldest id is
// dropped. Zero or negative keeps every id.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
