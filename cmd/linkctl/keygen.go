package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcmesh/link/identity"
)

var keygenSeedFile string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a long-term Ed25519 identity",
	Long: `Generate a fresh long-term identity: a 32-byte Ed25519 seed plus the
derived public key and identity hash. The seed is the only thing
needed to reconstruct the identity later with --seed-file on
"linkctl listen" or "linkctl dial".`,
	Example: `  # Print a new identity to stdout
  linkctl keygen

  # Generate and save the seed for reuse
  linkctl keygen --seed-file ./server.seed`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenSeedFile, "seed-file", "s", "", "write the 32-byte seed (hex) to this file")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("generate seed: %w", err)
	}

	id, err := identity.FromSeed(seed)
	if err != nil {
		return fmt.Errorf("derive identity: %w", err)
	}

	fmt.Printf("seed:       %s\n", hex.EncodeToString(seed))
	fmt.Printf("public_key: %s\n", hex.EncodeToString(id.PublicBytes()))
	fmt.Printf("hash:       %s\n", id.Hash())

	if keygenSeedFile == "" {
		return nil
	}
	if err := os.WriteFile(keygenSeedFile, []byte(hex.EncodeToString(seed)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	fmt.Printf("seed written to %s\n", keygenSeedFile)
	return nil
}
