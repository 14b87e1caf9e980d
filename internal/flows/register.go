package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/sealbox/opaqued/internal/stores"
)

// RunRegisterStart executes the first registration round. It is stateless:
// the primitive derives everything it needs from the server setup and the
// identifier, so there is no store side effect.
func RunRegisterStart(ctx context.Context, deps RegisterDeps, identifier string, request []byte) ([]byte, error) {
	if !ValidIdentifier(identifier) {
		return nil, ErrInvalidIdentifier
	}

	response, err := deps.Suite.RegistrationStart(identifier, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return response, nil
}

// RunRegisterFinish transforms the client's upload into a credential record
// and persists it, write-once. The existence check before the write races
// under eventual consistency for brand-new identifiers; the NX write in the
// store narrows but does not erase that window, which is accepted.
func RunRegisterFinish(ctx context.Context, deps RegisterDeps, identifier string, upload, bundle []byte) error {
	if !ValidIdentifier(identifier) {
		return ErrInvalidIdentifier
	}

	record, err := deps.Suite.RegistrationFinish(upload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	_, err = deps.Credentials.GetRecord(ctx, identifier)
	switch {
	case err == nil:
		return ErrAlreadyRegistered
	case errors.Is(err, stores.ErrCredentialNotFound):
	default:
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}

	if err := deps.Credentials.PutRecord(ctx, identifier, record); err != nil {
		if errors.Is(err, stores.ErrCredentialExists) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}

	if bundle != nil {
		if err := deps.Credentials.PutBundle(ctx, identifier, bundle); err != nil {
			return fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	return nil
}
