package sim

import (
	"go.uber.org/zap"

	"github.com/san-kum/forcegraph/internal/config"
	"github.com/san-kum/forcegraph/internal/dynamo"
)

type Option func(*options)

type options struct {
	dims      *dynamo.Dimensions
	numSplits *int
	logger    *zap.Logger
	listeners []Listener
	profile   *config.Profile
}

func WithDimensions(d dynamo.Dimensions) Option {
	return func(o *options) { o.dims = &d }
}

func WithNumSplits(n int) Option {
	return func(o *options) { o.numSplits = &n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithListener(l Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// WithProfile selects the layout profile. The session works on a clone.
func WithProfile(p *config.Profile) Option {
	return func(o *options) { o.profile = p }
}
