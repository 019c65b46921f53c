package corekit_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Web3Auth/mpc-core-kit-sub001/corekit"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

var _ = Describe("login lifecycle", func() {
	var (
		ctx context.Context
		e   *env
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		e, err = newEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	It("provisions a fresh user straight into LOGGED_IN", func() {
		core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(core.Status()).To(Equal(corekit.StatusNotInitialized))

		Expect(core.Init(ctx, e.auth)).To(Succeed())
		Expect(core.Status()).To(Equal(corekit.StatusLoggedIn))

		details := core.GetKeyDetails()
		Expect(details.TotalFactors).To(Equal(1))
		Expect(details.RequiredFactors).To(BeZero())
		Expect(details.KeyType).To(Equal(tkey.KeyTypeSecp256k1))
		Expect(details.PubKeyHex).NotTo(BeEmpty())
	})

	It("silently logs a returning device in via the stored device factor", func() {
		first, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Init(ctx, e.auth)).To(Succeed())
		Expect(first.Logout(ctx)).To(Succeed())

		returning, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(returning.Init(ctx, e.auth)).To(Succeed())
		Expect(returning.Status()).To(Equal(corekit.StatusLoggedIn))
	})

	It("lands a new device in REQUIRED_SHARE and accepts the recovery phrase", func() {
		first, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Init(ctx, e.auth)).To(Succeed())
		phrase, err := first.EnableMFA(ctx)
		Expect(err).NotTo(HaveOccurred())

		other, err := e.newCoreWithStorage(tkey.KeyTypeSecp256k1, 0, corekit.NewMemoryStorage())
		Expect(err).NotTo(HaveOccurred())
		Expect(other.Init(ctx, e.auth)).To(Succeed())
		Expect(other.Status()).To(Equal(corekit.StatusRequiredShare))

		key, err := factor.FromMnemonic(phrase)
		Expect(err).NotTo(HaveOccurred())
		Expect(other.InputFactorKey(ctx, key)).To(Succeed())
		Expect(other.Status()).To(Equal(corekit.StatusLoggedIn))
	})

	It("stays in REQUIRED_SHARE when the wrong factor key is tried", func() {
		first, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Init(ctx, e.auth)).To(Succeed())

		other, err := e.newCoreWithStorage(tkey.KeyTypeSecp256k1, 0, corekit.NewMemoryStorage())
		Expect(err).NotTo(HaveOccurred())
		Expect(other.Init(ctx, e.auth)).To(Succeed())

		Expect(other.InputFactorKey(ctx, e.auth.PostboxKey)).NotTo(Succeed())
		Expect(other.Status()).To(Equal(corekit.StatusRequiredShare))
	})

	It("drops all key material on logout", func() {
		core, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(core.Init(ctx, e.auth)).To(Succeed())
		Expect(core.Logout(ctx)).To(Succeed())
		Expect(core.Status()).To(Equal(corekit.StatusNotInitialized))

		_, err = core.SignECDSA(ctx, make([]byte, 32))
		Expect(err).To(HaveOccurred())
	})

	It("refuses a key type mismatch against the stored record", func() {
		first, err := e.newCore(tkey.KeyTypeSecp256k1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Init(ctx, e.auth)).To(Succeed())

		mismatched, err := e.newCore(tkey.KeyTypeEd25519, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(mismatched.Init(ctx, e.auth)).NotTo(Succeed())
	})
})
