package opaqued

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sealbox/opaqued/internal/rate"
	"github.com/sealbox/opaqued/internal/stores"
	"github.com/sealbox/opaqued/logging"
	"github.com/sealbox/opaqued/pake"
)

// Builder assembles an Engine. Configure with the With* methods and call
// Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	suite  pake.Suite
	log    logging.Logger
	built  bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing all stores and the rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSuite sets the PAKE primitive. Mostly useful for tests; production
// callers use WithServerSetup.
func (b *Builder) WithSuite(s pake.Suite) *Builder {
	b.suite = s
	return b
}

// WithServerSetup installs the production OPAQUE suite for the given server
// key material.
func (b *Builder) WithServerSetup(setup *pake.ServerSetup) *Builder {
	b.suite = pake.NewOpaque(setup)
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.log = l
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("build: redis client is required")
	}
	if b.suite == nil {
		return nil, errors.New("build: PAKE suite is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	b.built = true

	log := b.log
	if log == nil {
		log = logging.Nop()
	}

	return &Engine{
		config:      b.config,
		redis:       b.redis,
		suite:       b.suite,
		credentials: stores.NewCredentialStore(b.redis),
		states:      stores.NewLoginStateStore(b.redis),
		limiter: rate.New(b.redis, rate.Config{
			Enabled:     b.config.RateLimit.Enabled,
			MaxRequests: b.config.RateLimit.MaxRequests,
			Window:      b.config.RateLimit.Window,
		}),
		log: log,
		now: time.Now,
	}, nil
}
