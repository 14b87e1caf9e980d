package stores

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginStateVersion1 = 1

// maxTokenLen bounds client-supplied tokens before they reach Redis.
const maxTokenLen = 160

var (
	// ErrLoginStateNotFound is returned when the token's state is absent:
	// never written, already consumed, or TTL-expired. Callers must not
	// distinguish these cases.
	ErrLoginStateNotFound = errors.New("login state not found")
	// ErrLoginStateBackend is returned when Redis is unavailable.
	ErrLoginStateBackend = errors.New("login state backend unavailable")
	// ErrLoginStateCorrupt is returned when a stored state blob fails to decode.
	ErrLoginStateCorrupt = errors.New("login state corrupt")
)

// LoginState is the server-side handshake state persisted between the two
// login rounds. Fake marks the anti-enumeration branch; it is the
// authoritative copy of the advisory tag embedded in the token suffix.
type LoginState struct {
	Fake  bool
	State []byte
}

// LoginStateStore holds one-time-use login handshake state under a short TTL.
type LoginStateStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewLoginStateStore creates a [LoginStateStore] backed by the given Redis client.
func NewLoginStateStore(redisClient redis.UniversalClient) *LoginStateStore {
	return &LoginStateStore{redis: redisClient, prefix: "state"}
}

// NewToken builds the session token for an identifier:
// state:{identifier}:{unixMillis}:{r|f}. The tag suffix is advisory; the
// stored record carries the authoritative flag.
func (s *LoginStateStore) NewToken(identifier string, now time.Time, fake bool) string {
	tag := "r"
	if fake {
		tag = "f"
	}
	return fmt.Sprintf("%s:%s:%d:%s", s.prefix, identifier, now.UnixMilli(), tag)
}

// TokenTag extracts the advisory authenticity tag from a token suffix.
// ok is false when the token does not carry a recognizable tag.
func TokenTag(token string) (fake bool, ok bool) {
	switch {
	case strings.HasSuffix(token, ":f"):
		return true, true
	case strings.HasSuffix(token, ":r"):
		return false, true
	default:
		return false, false
	}
}

// Save persists the state under the token with the given TTL.
func (s *LoginStateStore) Save(ctx context.Context, token string, state *LoginState, ttl time.Duration) error {
	encoded, err := encodeLoginState(state)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, token, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginStateBackend, err)
	}
	return nil
}

// Consume reads the state for the token and deletes it before returning.
// The delete happens ahead of any decoding or verification by the caller, so
// a concurrent or replayed finish for the same token observes absence. The
// substrate has no transactional read-and-delete; the residual window
// between GET and DEL is accepted and bounded by per-key read-after-write
// behavior on a single Redis deployment.
func (s *LoginStateStore) Consume(ctx context.Context, token string) (*LoginState, error) {
	if len(token) == 0 || len(token) > maxTokenLen || !strings.HasPrefix(token, s.prefix+":") {
		return nil, ErrLoginStateNotFound
	}

	data, err := s.redis.Get(ctx, token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrLoginStateNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrLoginStateBackend, err)
	}

	if err := s.redis.Del(ctx, token).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginStateBackend, err)
	}

	state, err := decodeLoginState(data)
	if err != nil {
		return nil, err
	}
	return state, nil
}

func encodeLoginState(state *LoginState) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(loginStateVersion1)

	flag := byte(0)
	if state.Fake {
		flag = 1
	}
	buf.WriteByte(flag)

	if len(state.State) > 65535 {
		return nil, fmt.Errorf("%w: state too large", ErrLoginStateCorrupt)
	}
	buf.WriteByte(byte(len(state.State) >> 8))
	buf.WriteByte(byte(len(state.State)))
	buf.Write(state.State)

	return buf.Bytes(), nil
}

func decodeLoginState(data []byte) (*LoginState, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != loginStateVersion1 {
		return nil, fmt.Errorf("%w: bad version", ErrLoginStateCorrupt)
	}

	flag, err := reader.ReadByte()
	if err != nil || flag > 1 {
		return nil, fmt.Errorf("%w: bad flag", ErrLoginStateCorrupt)
	}

	hi, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated", ErrLoginStateCorrupt)
	}
	lo, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated", ErrLoginStateCorrupt)
	}

	blob := make([]byte, int(hi)<<8|int(lo))
	if _, err := io.ReadFull(reader, blob); err != nil {
		return nil, fmt.Errorf("%w: truncated", ErrLoginStateCorrupt)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing data", ErrLoginStateCorrupt)
	}

	return &LoginState{Fake: flag == 1, State: blob}, nil
}
