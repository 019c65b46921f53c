package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Web3Auth/mpc-core-kit-sub001/corekit"
	"github.com/Web3Auth/mpc-core-kit-sub001/internal/tssmock"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/factor"
	"github.com/Web3Auth/mpc-core-kit-sub001/pkg/kvstore"
	"github.com/Web3Auth/mpc-core-kit-sub001/tkey"
)

var (
	// Global flags
	keyTypeName string
	serverCount int
	verifierID  string
	metadataURL string
	verbose     bool

	// Command options
	message    string
	listenAddr string

	rootCmd = &cobra.Command{
		Use:   "corekit-cli",
		Short: "Demo driver for the threshold key management core",
		Long: `Runs the client-side key management core against an in-process server
quorum: key generation, factor lifecycle, resharing and threshold signing.`,
	}

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run the full lifecycle end to end",
		Long: `Generates a key, enables MFA, rotates factors through a reshare, signs a
message and verifies the signature.`,
		RunE: runDemo,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the metadata store API",
		Long:  `Serves the /v1/metadata key-value API backed by an in-memory store.`,
		RunE:  runServe,
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Display supported schemes",
		RunE:  runInfo,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&keyTypeName, "key-type", "k", "secp256k1", "Key type: secp256k1, ed25519")
	rootCmd.PersistentFlags().IntVarP(&serverCount, "servers", "n", 3, "Size of the simulated server quorum")
	rootCmd.PersistentFlags().StringVarP(&verifierID, "verifier-id", "u", "demo-user", "Verifier user id")
	rootCmd.PersistentFlags().StringVarP(&metadataURL, "metadata-url", "m", "", "Remote metadata server URL (in-memory store when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	demoCmd.Flags().StringVar(&message, "message", "hello threshold world", "Message to sign")
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "Listen address")

	rootCmd.AddCommand(demoCmd, serveCmd, infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func metadataStore() kvstore.Store {
	if metadataURL != "" {
		return kvstore.NewHTTPStore(metadataURL, nil)
	}
	return kvstore.NewMemStore()
}

func runDemo(cmd *cobra.Command, args []string) error {
	log := newLogger()
	keyType := tkey.KeyType(keyTypeName)
	if !keyType.Valid() {
		return fmt.Errorf("unknown key type %q", keyTypeName)
	}
	quorum, err := tssmock.NewQuorum(serverCount, rand.Reader, log)
	if err != nil {
		return err
	}
	core, err := corekit.New(corekit.Options{
		ClientID:       "corekit-cli",
		KeyType:        keyType,
		MetadataStore:  metadataStore(),
		ReshareBackend: quorum,
		SigningBackend: quorum,
		Logger:         log,
		SessionTTL:     time.Hour,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	auth := corekit.AuthResult{
		VerifierID: verifierID,
		PostboxKey: factor.Generate(rand.Reader),
		Signatures: [][]byte{[]byte("demo-auth-signature")},
	}
	if err := core.Init(ctx, auth); err != nil {
		return err
	}
	details := core.GetKeyDetails()
	fmt.Printf("status:      %s\n", details.Status)
	fmt.Printf("public key:  %s\n", details.PubKeyHex)

	phrase, err := core.EnableMFA(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("recovery:    %s\n", phrase)

	details = core.GetKeyDetails()
	fmt.Printf("factors:     %d (epoch %d)\n", details.TotalFactors, details.Epoch)

	var sigHex string
	switch keyType {
	case tkey.KeyTypeSecp256k1:
		digest := sha256.Sum256([]byte(message))
		sig, err := core.SignECDSA(ctx, digest[:])
		if err != nil {
			return err
		}
		sigHex = hex.EncodeToString(sig.Bytes())
	case tkey.KeyTypeEd25519:
		sig, err := core.SignEdDSA(ctx, []byte(message))
		if err != nil {
			return err
		}
		sigHex = hex.EncodeToString(sig.Bytes())
	}
	fmt.Printf("message:     %q\n", message)
	fmt.Printf("signature:   %s\n", sigHex)
	return core.Logout(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()
	handler := kvstore.Handler(kvstore.NewMemStore(), log)
	log.Info().Str("addr", listenAddr).Msg("serving metadata API")
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

func runInfo(cmd *cobra.Command, args []string) error {
	fmt.Println("Supported key types:")
	fmt.Println("  secp256k1  ECDSA (r,s,v), two-level share hierarchy, account offsets")
	fmt.Println("  ed25519    EdDSA (RFC 8032), flat share layout, base account only")
	fmt.Printf("\nFactor share types: device=%s recovery=%s (max %d factors)\n",
		tkey.TSSIndexDevice, tkey.TSSIndexRecovery, tkey.MaxFactors)
	return nil
}
