package corekit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/coreerr"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/party"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

const deviceFactorItem = "deviceFactor/"

// factorDescription builds the label blob stored next to a factor.
func factorDescription(module string) string {
	blob, _ := json.Marshal(map[string]any{
		"module":    module,
		"dateAdded": time.Now().UTC().Format(time.RFC3339),
	})
	return string(blob)
}

// CreateFactorArgs configures factor creation at the engine level.
type CreateFactorArgs struct {
	// ShareType is tkey.TSSIndexDevice or tkey.TSSIndexRecovery; defaults
	// to recovery.
	ShareType party.ID
	// FactorKey is generated when nil.
	FactorKey *factor.Key
	// Answer derives the factor key from a security answer salted with
	// the client id. Ignored when FactorKey is set.
	Answer string
	// Module names the feature creating the factor, for the description
	// blob.
	Module string
}

// CreateFactor registers a new factor and returns its key.
func (c *Core) CreateFactor(ctx context.Context, args CreateFactorArgs) (*factor.Key, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return nil, err
	}
	if args.ShareType == 0 {
		args.ShareType = tkey.TSSIndexRecovery
	}
	if args.FactorKey == nil && args.Answer != "" {
		args.FactorKey = factor.FromAnswer(args.Answer, c.opts.ClientID)
		if args.Module == "" {
			args.Module = "securityQuestions"
		}
	}
	if args.Module == "" {
		args.Module = "manualFactor"
	}
	key, err := c.tk.CreateFactor(ctx, c.live, tkey.CreateFactorParams{
		TSSIndex:       args.ShareType,
		FactorKey:      args.FactorKey,
		Description:    factorDescription(args.Module),
		AuthSignatures: c.auth.Signatures,
	})
	if err != nil {
		return nil, err
	}
	c.discardPrecomputedLocked(ctx)
	if err := c.refreshLiveLocked(); err != nil {
		return nil, err
	}
	return key, nil
}

// DeleteFactor removes a factor. Supplying the raw key additionally clears
// any local copy of it.
func (c *Core) DeleteFactor(ctx context.Context, pub factor.Pub, key *factor.Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return err
	}
	err := c.tk.DeleteFactor(ctx, c.activeFactor.Pub(), tkey.DeleteFactorParams{
		Pub:            pub,
		FactorKey:      key,
		AuthSignatures: c.auth.Signatures,
	})
	if err != nil {
		return err
	}
	if stored, ok := c.loadDeviceFactorLocked(); ok && stored.Pub() == pub {
		_ = c.opts.Storage.RemoveItem(c.deviceFactorKeyLocked())
	}
	c.discardPrecomputedLocked(ctx)
	return c.refreshLiveLocked()
}

// EnableMFA adds a recovery factor and hands back its 24-word phrase. The
// device factor keeps silently logging this device in; the phrase recovers
// the account anywhere else.
func (c *Core) EnableMFA(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return "", err
	}
	if c.tk.Dirty() {
		return "", coreerr.New(coreerr.CodeCommitRequired, "commit staged changes before enabling MFA")
	}
	key, err := c.tk.CreateFactor(ctx, c.live, tkey.CreateFactorParams{
		TSSIndex:       tkey.TSSIndexRecovery,
		Description:    factorDescription("seedPhrase"),
		AuthSignatures: c.auth.Signatures,
	})
	if err != nil {
		return "", err
	}
	c.discardPrecomputedLocked(ctx)
	if err := c.refreshLiveLocked(); err != nil {
		return "", err
	}
	return key.Mnemonic()
}

// AddFactorDescription appends a label blob to an existing factor.
func (c *Core) AddFactorDescription(ctx context.Context, pub factor.Pub, module string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLoggedInLocked(); err != nil {
		return err
	}
	return c.tk.AddShareDescription(ctx, pub, factorDescription(module), c.auth.Signatures)
}

func (c *Core) deviceFactorKeyLocked() string {
	return deviceFactorItem + c.auth.VerifierID
}

func (c *Core) persistDeviceFactorLocked(key *factor.Key) {
	if err := c.opts.Storage.SetItem(c.deviceFactorKeyLocked(), []byte(key.Hex())); err != nil {
		c.log.Warn().Err(err).Msg("persisting device factor failed")
	}
}

func (c *Core) loadDeviceFactorLocked() (*factor.Key, bool) {
	data, err := c.opts.Storage.GetItem(c.deviceFactorKeyLocked())
	if err != nil {
		return nil, false
	}
	key, err := factor.FromHex(string(data))
	if err != nil {
		c.log.Warn().Err(err).Msg("stored device factor is corrupt")
		return nil, false
	}
	return key, true
}
