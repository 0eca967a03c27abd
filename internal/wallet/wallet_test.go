package wallet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenscout/internal/config"
)

const testMnemonic12 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

const testMnemonic24 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		wantErr  bool
	}{
		{"valid 12 words", testMnemonic12, false},
		{"valid 24 words", testMnemonic24, false},
		{"extra whitespace", "  " + strings.ReplaceAll(testMnemonic12, " ", "\n") + "\n", false},
		{"empty", "", true},
		{"bad checksum", strings.Replace(testMnemonic12, "about", "abandon", 1), true},
		{"wrong length", "abandon abandon abandon", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMnemonic(tt.mnemonic)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMnemonic() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, config.ErrInvalidMnemonic) {
				t.Errorf("error %v does not wrap ErrInvalidMnemonic", err)
			}
		})
	}
}

func TestDeriveAddressKnownVector(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic12)
	if err != nil {
		t.Fatal(err)
	}
	masterKey, err := DeriveMasterKey(seed)
	if err != nil {
		t.Fatal(err)
	}

	got, err := DeriveAddress(masterKey, 0)
	if err != nil {
		t.Fatalf("DeriveAddress() error = %v", err)
	}
	if want := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"; got != want {
		t.Errorf("DeriveAddress(index 0) = %s, want %s", got, want)
	}
}

func TestDeriveAddressDistinctPerIndex(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic24)
	if err != nil {
		t.Fatal(err)
	}
	masterKey, err := DeriveMasterKey(seed)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := uint32(0); i < 5; i++ {
		addr, err := DeriveAddress(masterKey, i)
		if err != nil {
			t.Fatalf("DeriveAddress(%d) error = %v", i, err)
		}
		if !common.IsHexAddress(addr) {
			t.Errorf("index %d: %q is not an address", i, addr)
		}
		if seen[addr] {
			t.Errorf("index %d: duplicate address %s", i, addr)
		}
		seen[addr] = true
	}
}

func TestDerivationPath(t *testing.T) {
	if got := DerivationPath(7); got != "m/44'/60'/0'/0/7" {
		t.Errorf("DerivationPath(7) = %s", got)
	}
}

func TestAddressFromMnemonicFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemonic.txt")
	if err := os.WriteFile(path, []byte(testMnemonic12+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := AddressFromMnemonicFile(path, 0)
	if err != nil {
		t.Fatalf("AddressFromMnemonicFile() error = %v", err)
	}
	if got != "0x9858EfFD232B4033E47d90003D41EC34EcaEda94" {
		t.Errorf("address = %s", got)
	}

	if _, err := AddressFromMnemonicFile("", 0); !errors.Is(err, config.ErrMnemonicFileNotSet) {
		t.Errorf("empty path error = %v, want ErrMnemonicFileNotSet", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	os.WriteFile(empty, []byte("  \n"), 0o600)
	if _, err := AddressFromMnemonicFile(empty, 0); !errors.Is(err, config.ErrInvalidMnemonic) {
		t.Errorf("empty file error = %v, want ErrInvalidMnemonic", err)
	}
}
