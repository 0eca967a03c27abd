package wallet

import (
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ethereum/go-ethereum/crypto"
)

// BIP-44 path components of EVM accounts: m/44'/60'/0'/0/{index}.
const (
	bip44Purpose = 44
	evmCoinType  = 60
)

// DerivationPath returns the BIP-44 path of the account at index.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/%d'/%d'/0'/0/%d", bip44Purpose, evmCoinType, index)
}

// DeriveAddress derives the EIP-55 checksummed EVM address at index.
func DeriveAddress(masterKey *hdkeychain.ExtendedKey, index uint32) (string, error) {
	key := masterKey
	for _, step := range []uint32{
		hdkeychain.HardenedKeyStart + bip44Purpose,
		hdkeychain.HardenedKeyStart + evmCoinType,
		hdkeychain.HardenedKeyStart + 0,
		0,
		index,
	} {
		child, err := key.Derive(step)
		if err != nil {
			return "", fmt.Errorf("derive %s: %w", DerivationPath(index), err)
		}
		key = child
	}

	privKey, err := key.ECPrivKey()
	if err != nil {
		return "", fmt.Errorf("private key at %s: %w", DerivationPath(index), err)
	}
	addr := crypto.PubkeyToAddress(privKey.ToECDSA().PublicKey)

	slog.Debug("derived wallet address", "path", DerivationPath(index), "address", addr.Hex())
	return addr.Hex(), nil
}

// AddressFromMnemonicFile reads the mnemonic at path and derives the wallet
// address at index. Detection sessions use it when no wallet is given.
func AddressFromMnemonicFile(path string, index uint32) (string, error) {
	mnemonic, err := ReadMnemonicFromFile(path)
	if err != nil {
		return "", err
	}
	seed, err := MnemonicToSeed(mnemonic)
	if err != nil {
		return "", err
	}
	masterKey, err := DeriveMasterKey(seed)
	if err != nil {
		return "", err
	}
	return DeriveAddress(masterKey, index)
}
