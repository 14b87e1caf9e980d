package pake

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cretz/gopaque/gopaque"
	"go.dedis.ch/kyber/v3"
)

const (
	recordVersion1 = 1
	stateVersion1  = 1
)

// credentialRecord is the decoded form of the persisted password file: the
// client's long-term public key and its encrypted envelope.
type credentialRecord struct {
	userPublicKey kyber.Point
	envelope      []byte
}

// loginState is the decoded form of the serialized server state held between
// the two login rounds.
type loginState struct {
	userID          []byte
	userPublicKey   kyber.Point
	userEphemeral   kyber.Point
	serverEphemeral kyber.Point
	sharedSecret    kyber.Point
}

func encodeRecord(rec *credentialRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	if err := writePoint(&buf, rec.userPublicKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := writeVarBytes(&buf, rec.envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*credentialRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != recordVersion1 {
		return nil, fmt.Errorf("%w: bad version", ErrInvalidRecord)
	}

	rec := &credentialRecord{}
	if rec.userPublicKey, err = readPoint(reader); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if rec.envelope, err = readVarBytes(reader); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidRecord)
	}
	return rec, nil
}

func encodeLoginState(st *loginState) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(stateVersion1)

	if err := writeVarBytes(&buf, st.userID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	for _, p := range []kyber.Point{st.userPublicKey, st.userEphemeral, st.serverEphemeral, st.sharedSecret} {
		if err := writePoint(&buf, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}
	return buf.Bytes(), nil
}

func decodeLoginState(data []byte) (*loginState, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != stateVersion1 {
		return nil, fmt.Errorf("%w: bad version", ErrInvalidState)
	}

	st := &loginState{}
	if st.userID, err = readVarBytes(reader); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	for _, dst := range []*kyber.Point{&st.userPublicKey, &st.userEphemeral, &st.serverEphemeral, &st.sharedSecret} {
		if *dst, err = readPoint(reader); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidState)
	}
	return st, nil
}

func writePoint(buf *bytes.Buffer, p kyber.Point) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func readPoint(reader *bytes.Reader) (kyber.Point, error) {
	c := gopaque.CryptoDefault
	b := make([]byte, c.PointLen())
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, err
	}
	p := c.Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}

func writeVarBytes(buf *bytes.Buffer, b []byte) error {
	if len(b) > 65535 {
		return fmt.Errorf("field length %d exceeds encoding limit", len(b))
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(b))); err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func readVarBytes(reader *bytes.Reader) ([]byte, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
