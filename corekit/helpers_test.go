package corekit_test

import (
	"crypto/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/Web3Auth/mpc-core-kit-sub001/corekit"
	"github.com/Web3Auth/mpc-core-kit-sub001/internal/tssmock"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/kvstore"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

// env holds the shared infrastructure of one simulated user: the server
// quorum, the metadata store and the device-local storage.
type env struct {
	quorum  *tssmock.Quorum
	meta    *kvstore.MemStore
	storage *corekit.MemoryStorage
	auth    corekit.AuthResult
}

func newEnv() (*env, error) {
	quorum, err := tssmock.NewQuorum(3, rand.Reader, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	return &env{
		quorum:  quorum,
		meta:    kvstore.NewMemStore(),
		storage: corekit.NewMemoryStorage(),
		auth: corekit.AuthResult{
			VerifierID: "alice@example.com",
			PostboxKey: factor.Generate(rand.Reader),
			Signatures: [][]byte{[]byte("test-auth-signature")},
			UserInfo:   map[string]string{"email": "alice@example.com"},
		},
	}, nil
}

func (e *env) newCore(keyType tkey.KeyType, ttl time.Duration) (*corekit.Core, error) {
	return e.newCoreWithStorage(keyType, ttl, e.storage)
}

// newCoreWithStorage builds a Core against the shared quorum and metadata
// store but an arbitrary local storage, simulating another device.
func (e *env) newCoreWithStorage(keyType tkey.KeyType, ttl time.Duration, storage corekit.Storage) (*corekit.Core, error) {
	return corekit.New(corekit.Options{
		ClientID:       "test-client",
		KeyType:        keyType,
		MetadataStore:  e.meta,
		ReshareBackend: e.quorum,
		SigningBackend: e.quorum,
		Storage:        storage,
		Logger:         zerolog.Nop(),
		SessionTTL:     ttl,
	})
}
