package pake

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/cretz/gopaque/gopaque"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/hkdf"
)

// fakeEnvelopeLen matches the ciphertext length of a genuine credential
// envelope: AuthEncrypt of a 64-byte plaintext (user private scalar + server
// public point) under the default suite is 16 IV + 80 CBC + 32 MAC bytes.
// Fake envelopes must be the same length or they become an enumeration
// oracle.
const fakeEnvelopeLen = 128

// Opaque implements Suite over the gopaque OPAQUE implementation with the
// SIGMA-I embedded key exchange.
type Opaque struct {
	setup  *ServerSetup
	crypto gopaque.Crypto
}

// NewOpaque creates the production Suite for the given server setup.
func NewOpaque(setup *ServerSetup) *Opaque {
	return &Opaque{setup: setup, crypto: gopaque.CryptoDefault}
}

// RegistrationStart runs the server-side OPRF step of registration. The OPRF
// key is derived from the setup seed and the identifier, so no per-handshake
// state is kept between start and finish.
func (o *Opaque) RegistrationStart(identifier string, request []byte) ([]byte, error) {
	var init gopaque.UserRegisterInit
	if err := init.FromBytes(o.crypto, request); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if !bytes.Equal(init.UserID, []byte(identifier)) {
		return nil, fmt.Errorf("%w: identifier mismatch", ErrInvalidMessage)
	}

	resp := &gopaque.ServerRegisterInit{
		ServerPublicKey: o.pub(o.setup.privateKey),
	}
	resp.V, resp.Beta = gopaque.OPRFServerStep2(o.crypto, init.Alpha, o.setup.oprfKey(identifier))

	out, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return out, nil
}

// RegistrationFinish re-encodes the client's upload as the credential record.
func (o *Opaque) RegistrationFinish(upload []byte) ([]byte, error) {
	var complete gopaque.UserRegisterComplete
	if err := complete.FromBytes(o.crypto, upload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return encodeRecord(&credentialRecord{
		userPublicKey: complete.UserPublicKey,
		envelope:      complete.EnvU,
	})
}

// LoginStart runs the server side of the first login round. A nil record
// selects the fake-record branch; both branches execute the same protocol
// steps against a structurally identical record.
func (o *Opaque) LoginStart(identifier string, record []byte, request []byte) ([]byte, []byte, error) {
	var userInit gopaque.UserAuthInit
	if err := userInit.FromBytes(o.crypto, request); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if !bytes.Equal(userInit.UserID, []byte(identifier)) {
		return nil, nil, fmt.Errorf("%w: identifier mismatch", ErrInvalidMessage)
	}

	var rec *credentialRecord
	if record != nil {
		decoded, err := decodeRecord(record)
		if err != nil {
			return nil, nil, err
		}
		rec = decoded
	} else {
		fake, err := o.fakeRecord(identifier)
		if err != nil {
			return nil, nil, err
		}
		rec = fake
	}

	regInfo := &gopaque.ServerRegisterComplete{
		UserID:           []byte(identifier),
		ServerPrivateKey: o.setup.privateKey,
		UserPublicKey:    rec.userPublicKey,
		EnvU:             rec.envelope,
		KU:               o.setup.oprfKey(identifier),
	}

	kex := gopaque.NewKeyExchangeSigma(o.crypto)
	auth := gopaque.NewServerAuth(o.crypto, kex)

	complete, err := auth.Complete(&userInit, regInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	response, err := complete.ToBytes()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	// The ephemeral public keys ride inside the exchange messages; pull them
	// back out so the finish round can be served from serialized state alone.
	var msg1 gopaque.KeyExchangeSigmaMsg1
	if err := msg1.FromBytes(o.crypto, userInit.EmbeddedKeyExchangeMessage1); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	var msg2 gopaque.KeyExchangeSigmaMsg2
	if err := msg2.FromBytes(o.crypto, complete.EmbeddedKeyExchangeMessage2); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	state, err := encodeLoginState(&loginState{
		userID:          []byte(identifier),
		userPublicKey:   rec.userPublicKey,
		userEphemeral:   msg1.UserExchangePublicKey,
		serverEphemeral: msg2.ServerExchangePublicKey,
		sharedSecret:    kex.SharedSecret,
	})
	if err != nil {
		return nil, nil, err
	}

	return response, state, nil
}

// LoginFinish validates the client's SIGMA-I finalization against serialized
// server state and derives the session key.
func (o *Opaque) LoginFinish(state []byte, finalization []byte) ([]byte, error) {
	st, err := decodeLoginState(state)
	if err != nil {
		return nil, err
	}

	var userComplete gopaque.UserAuthComplete
	if err := userComplete.FromBytes(o.crypto, finalization); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	var msg3 gopaque.KeyExchangeSigmaMsg3
	if err := msg3.FromBytes(o.crypto, userComplete.EmbeddedKeyExchangeMessage3); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	userEph, err := st.userEphemeral.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	serverEph, err := st.serverEphemeral.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	userPub, err := st.userPublicKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	secret, err := st.sharedSecret.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	// KE3 signature: Sig(PrivU; g^x, g^y) over H(userEph || serverEph).
	h := o.crypto.Hash()
	h.Write(userEph)
	h.Write(serverEph)
	if err := o.crypto.Verify(st.userPublicKey, h.Sum(nil), msg3.UserExchangeSig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	// KE3 MAC: Mac(Km2; IdU) keyed from the shared secret.
	macParent := o.crypto.NewKeyFromReader(bytes.NewReader(secret))
	macKey := o.crypto.DeriveKey(macParent, []byte("sigma-mac"))
	macKeyBytes, err := macKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	mac := hmac.New(o.crypto.Hash, macKeyBytes)
	mac.Write(userPub)
	if !hmac.Equal(mac.Sum(nil), msg3.UserExchangeMac) {
		return nil, fmt.Errorf("%w: mac mismatch", ErrVerificationFailed)
	}

	key := make([]byte, SessionKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha512.New, secret, nil, []byte("opaqued/session-key")), key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return key, nil
}

// fakeRecord builds the synthetic credential for unknown identifiers. Every
// component is derived deterministically from the fake seed so repeated
// login starts for the same identifier observe identical bytes, matching the
// stability of genuine records.
func (o *Opaque) fakeRecord(identifier string) (*credentialRecord, error) {
	userKey := o.setup.fakeUserKey(identifier)

	envKey, err := o.setup.fakeEnvelopeKey(identifier).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	envelope := make([]byte, fakeEnvelopeLen)
	if _, err := io.ReadFull(hkdf.New(o.crypto.Hash, envKey, nil, []byte(identifier)), envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	return &credentialRecord{
		userPublicKey: o.pub(userKey),
		envelope:      envelope,
	}, nil
}

func (o *Opaque) pub(priv kyber.Scalar) kyber.Point {
	return o.crypto.Point().Mul(priv, nil)
}
