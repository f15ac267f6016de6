package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	itypes "github.com/orbital-labs/intents-core/internal/types"
)

// ethClient is the subset of *ethclient.Client the adapter depends on,
// grounded on the teacher's ContractClient taking a raw *ethclient.Client
// (see pkg/contractclient/contractclient_test.go's NewContractClient(client, ...)).
// Narrowed to an interface here so tests can substitute a fake without a
// live RPC endpoint.
type ethClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// EthAdapter implements Adapter over a real or JSON-RPC go-ethereum
// client, signing with a local private key the way the teacher's
// ContractClient drives transactions through a single configured signer.
type EthAdapter struct {
	chainID uint64
	client  ethClient
	signer  *ecdsaSigner
}

// NewEthAdapter dials rpcURL and wraps it as an Adapter for chainID,
// signing outgoing transactions with privateKeyHex.
func NewEthAdapter(chainID uint64, rpcURL string, privateKeyHex string) (*EthAdapter, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	signer, err := newECDSASigner(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return &EthAdapter{chainID: chainID, client: client, signer: signer}, nil
}

func (a *EthAdapter) ChainID() uint64 { return a.chainID }

func (a *EthAdapter) SubmitTx(ctx context.Context, spec TxSpec) (common.Hash, error) {
	nonce, err := a.client.PendingNonceAt(ctx, a.signer.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce lookup: %w", err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}

	value := spec.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := types.NewTransaction(nonce, spec.To, value, spec.GasLimit, gasPrice, spec.Data)

	chainID := new(big.Int).SetUint64(a.chainID)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), a.signer.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, itypes.ErrRpcUnavailable
	}
	return signedTx.Hash(), nil
}

func (a *EthAdapter) WaitReceipt(ctx context.Context, txHash common.Hash, minConfirmations uint64) (*TxReceipt, error) {
	receipt, err := a.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, itypes.ErrTimeout
	}

	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}

	confirmations := uint64(0)
	if head >= receipt.BlockNumber.Uint64() {
		confirmations = head - receipt.BlockNumber.Uint64()
	}
	if confirmations < minConfirmations {
		return nil, itypes.ErrTimeout
	}

	logs := make([][]byte, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, l.Data)
	}

	return &TxReceipt{
		TxHash:            txHash,
		BlockNumber:       receipt.BlockNumber.Uint64(),
		Confirmations:     confirmations,
		Status:            receipt.Status,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Logs:              logs,
	}, nil
}

func (a *EthAdapter) ReadState(ctx context.Context, address common.Address, slot common.Hash) ([]byte, error) {
	return a.client.StorageAt(ctx, address, slot, nil)
}

// ecdsaSigner wraps the private key used to sign outgoing transactions.
type ecdsaSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newECDSASigner(privateKeyHex string) (*ecdsaSigner, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &ecdsaSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}
