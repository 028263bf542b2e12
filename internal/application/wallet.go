package application

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// CreateWallet generates a fresh keypair and returns the address and the
// private key hex. The key is handed to the caller and never persisted or
// logged here.
func (p *Provider) CreateWallet() (address, privateKey string, err error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", "", err
	}
	address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	privateKey = hexutil.Encode(crypto.FromECDSA(key))
	return address, privateKey, nil
}

// GetBalance returns the address balance in the chain's human denomination
// as a decimal string.
func (p *Provider) GetBalance(ctx context.Context, address string) (string, error) {
	wei, err := p.node.Balance(ctx, address)
	if err != nil {
		return "", err
	}
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return ether.Text('f', -1), nil
}
