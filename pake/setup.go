package pake

import (
	"fmt"

	"github.com/cretz/gopaque/gopaque"
	"go.dedis.ch/kyber/v3"
)

const setupVersion1 = 1

// ServerSetup holds the server's long-term key material: the persistent
// private key used in the key exchange, the seed from which per-identifier
// OPRF keys are derived, and the seed from which fake records are derived.
//
// Generate once with NewServerSetup, persist with Serialize, and provision
// the same setup to every server instance. Losing the setup invalidates all
// registered credentials.
type ServerSetup struct {
	privateKey kyber.Scalar
	oprfSeed   kyber.Scalar
	fakeSeed   kyber.Scalar
}

// NewServerSetup generates fresh server key material from the suite's
// cryptographic random stream.
func NewServerSetup() *ServerSetup {
	c := gopaque.CryptoDefault
	return &ServerSetup{
		privateKey: c.NewKey(nil),
		oprfSeed:   c.NewKey(nil),
		fakeSeed:   c.NewKey(nil),
	}
}

// Serialize encodes the setup for storage in a secret manager.
func (s *ServerSetup) Serialize() ([]byte, error) {
	out := []byte{setupVersion1}
	for _, sc := range []kyber.Scalar{s.privateKey, s.oprfSeed, s.fakeSeed} {
		b, err := sc.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// ParseServerSetup decodes a setup produced by Serialize.
func ParseServerSetup(data []byte) (*ServerSetup, error) {
	c := gopaque.CryptoDefault
	scalarLen := c.ScalarLen()

	if len(data) != 1+3*scalarLen {
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidSetup, len(data))
	}
	if data[0] != setupVersion1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidSetup, data[0])
	}

	scalars := make([]kyber.Scalar, 3)
	rest := data[1:]
	for i := range scalars {
		sc := c.Scalar()
		if err := sc.UnmarshalBinary(rest[:scalarLen]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSetup, err)
		}
		scalars[i] = sc
		rest = rest[scalarLen:]
	}

	return &ServerSetup{
		privateKey: scalars[0],
		oprfSeed:   scalars[1],
		fakeSeed:   scalars[2],
	}, nil
}

// oprfKey derives the per-identifier OPRF key. The same identifier always
// maps to the same key, which is what makes registration start stateless and
// login envelopes recoverable.
func (s *ServerSetup) oprfKey(identifier string) kyber.Scalar {
	return gopaque.CryptoDefault.DeriveKey(s.oprfSeed, []byte("oprf:"+identifier))
}

// fakeUserKey derives the synthetic user private key for the fake-record branch.
func (s *ServerSetup) fakeUserKey(identifier string) kyber.Scalar {
	return gopaque.CryptoDefault.DeriveKey(s.fakeSeed, []byte("user:"+identifier))
}

// fakeEnvelopeKey derives the keystream key for the fake envelope bytes.
func (s *ServerSetup) fakeEnvelopeKey(identifier string) kyber.Scalar {
	return gopaque.CryptoDefault.DeriveKey(s.fakeSeed, []byte("env:"+identifier))
}
