package pake

import (
	"crypto/sha512"
	"io"
	"strings"
	"testing"

	"github.com/cretz/gopaque/gopaque"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

const testIdentifier = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// register drives the client side of registration against the suite and
// returns the resulting credential record.
func register(t *testing.T, suite *Opaque, identifier, password string) []byte {
	t.Helper()

	user := gopaque.NewUserRegister(gopaque.CryptoDefault, []byte(identifier), nil)
	request, err := user.Init([]byte(password)).ToBytes()
	require.NoError(t, err)

	responseBytes, err := suite.RegistrationStart(identifier, request)
	require.NoError(t, err)

	var response gopaque.ServerRegisterInit
	require.NoError(t, response.FromBytes(gopaque.CryptoDefault, responseBytes))

	upload, err := user.Complete(&response).ToBytes()
	require.NoError(t, err)

	record, err := suite.RegistrationFinish(upload)
	require.NoError(t, err)
	return record
}

// loginStart drives the client side of the first login round. It returns the
// client's exchange (for deriving the expected session key), the finalization
// bytes, the server state, and the client-side error if the credential
// response did not decrypt.
func loginStart(t *testing.T, suite *Opaque, identifier string, record []byte, password string) (*gopaque.KeyExchangeSigma, []byte, []byte, error) {
	t.Helper()

	kex := gopaque.NewKeyExchangeSigma(gopaque.CryptoDefault)
	user := gopaque.NewUserAuth(gopaque.CryptoDefault, []byte(identifier), kex)

	init, err := user.Init([]byte(password))
	require.NoError(t, err)
	request, err := init.ToBytes()
	require.NoError(t, err)

	responseBytes, state, err := suite.LoginStart(identifier, record, request)
	require.NoError(t, err)

	var response gopaque.ServerAuthComplete
	require.NoError(t, response.FromBytes(gopaque.CryptoDefault, responseBytes))

	_, complete, err := user.Complete(&response)
	if err != nil {
		return kex, nil, state, err
	}
	finalization, err := complete.ToBytes()
	require.NoError(t, err)
	return kex, finalization, state, nil
}

func clientSessionKey(t *testing.T, kex *gopaque.KeyExchangeSigma) []byte {
	t.Helper()

	secret, err := kex.SharedSecret.MarshalBinary()
	require.NoError(t, err)
	key := make([]byte, SessionKeyLen)
	_, err = io.ReadFull(hkdf.New(sha512.New, secret, nil, []byte("opaqued/session-key")), key)
	require.NoError(t, err)
	return key
}

func TestRegisterAndLoginRoundTrip(t *testing.T) {
	suite := NewOpaque(NewServerSetup())

	record := register(t, suite, testIdentifier, "correct horse battery staple")

	kex, finalization, state, err := loginStart(t, suite, testIdentifier, record, "correct horse battery staple")
	require.NoError(t, err)

	sessionKey, err := suite.LoginFinish(state, finalization)
	require.NoError(t, err)
	require.Len(t, sessionKey, SessionKeyLen)
	assert.Equal(t, clientSessionKey(t, kex), sessionKey)
}

func TestLoginWrongPasswordFailsClientSide(t *testing.T) {
	suite := NewOpaque(NewServerSetup())

	record := register(t, suite, testIdentifier, "right password")

	_, _, _, err := loginStart(t, suite, testIdentifier, record, "wrong password")
	require.Error(t, err)
}

func TestLoginFinishRejectsTamperedFinalization(t *testing.T) {
	suite := NewOpaque(NewServerSetup())

	record := register(t, suite, testIdentifier, "pw")

	_, finalization, state, err := loginStart(t, suite, testIdentifier, record, "pw")
	require.NoError(t, err)

	// Flip a bit near the end, inside the MAC.
	finalization[len(finalization)-1] ^= 0x01
	_, err = suite.LoginFinish(state, finalization)
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestLoginFinishRejectsForeignFinalization(t *testing.T) {
	suite := NewOpaque(NewServerSetup())
	other := strings.Repeat("f", len(testIdentifier))

	recordA := register(t, suite, testIdentifier, "pw-a")
	recordB := register(t, suite, other, "pw-b")

	_, _, stateA, err := loginStart(t, suite, testIdentifier, recordA, "pw-a")
	require.NoError(t, err)
	_, finalizationB, _, err := loginStart(t, suite, other, recordB, "pw-b")
	require.NoError(t, err)

	_, err = suite.LoginFinish(stateA, finalizationB)
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestFakeBranchMatchesRealShape(t *testing.T) {
	suite := NewOpaque(NewServerSetup())

	record := register(t, suite, testIdentifier, "pw")

	realResponse := startResponse(t, suite, testIdentifier, record)
	fakeResponse := startResponse(t, suite, strings.Repeat("a", len(testIdentifier)), nil)

	assert.Len(t, fakeResponse.EnvU, len(realResponse.EnvU))
	assert.True(t, fakeResponse.ServerPublicKey.Equal(realResponse.ServerPublicKey))
}

func TestFakeBranchIsDeterministic(t *testing.T) {
	suite := NewOpaque(NewServerSetup())
	unknown := strings.Repeat("a", len(testIdentifier))

	first := startResponse(t, suite, unknown, nil)
	second := startResponse(t, suite, unknown, nil)

	assert.Equal(t, first.EnvU, second.EnvU)
}

func TestFakeBranchNeverYieldsSession(t *testing.T) {
	suite := NewOpaque(NewServerSetup())
	unknown := strings.Repeat("b", len(testIdentifier))

	_, _, _, err := loginStart(t, suite, unknown, nil, "any password")
	require.Error(t, err, "fake envelope must not decrypt")
}

func TestLoginStartRejectsIdentifierMismatch(t *testing.T) {
	suite := NewOpaque(NewServerSetup())

	kex := gopaque.NewKeyExchangeSigma(gopaque.CryptoDefault)
	user := gopaque.NewUserAuth(gopaque.CryptoDefault, []byte(testIdentifier), kex)
	init, err := user.Init([]byte("pw"))
	require.NoError(t, err)
	request, err := init.ToBytes()
	require.NoError(t, err)

	_, _, err = suite.LoginStart(strings.Repeat("c", len(testIdentifier)), nil, request)
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestRegistrationStartRejectsGarbage(t *testing.T) {
	suite := NewOpaque(NewServerSetup())

	_, err := suite.RegistrationStart(testIdentifier, []byte("not a protocol message"))
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestLoginFinishRejectsGarbageState(t *testing.T) {
	suite := NewOpaque(NewServerSetup())

	_, err := suite.LoginFinish([]byte{0xff, 0x00}, []byte("junk"))
	require.ErrorIs(t, err, ErrInvalidState)
}

func startResponse(t *testing.T, suite *Opaque, identifier string, record []byte) *gopaque.ServerAuthComplete {
	t.Helper()

	kex := gopaque.NewKeyExchangeSigma(gopaque.CryptoDefault)
	user := gopaque.NewUserAuth(gopaque.CryptoDefault, []byte(identifier), kex)
	init, err := user.Init([]byte("probe"))
	require.NoError(t, err)
	request, err := init.ToBytes()
	require.NoError(t, err)

	responseBytes, _, err := suite.LoginStart(identifier, record, request)
	require.NoError(t, err)

	var response gopaque.ServerAuthComplete
	require.NoError(t, response.FromBytes(gopaque.CryptoDefault, responseBytes))
	return &response
}
