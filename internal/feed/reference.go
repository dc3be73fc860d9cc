package feed

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const aggregatorABIJSON = `[{"inputs":[],"name":"latestAnswer","outputs":[{"internalType":"int256","name":"","type":"int256"}],"stateMutability":"view","type":"function"}]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ReferenceOptions parameterise the on-chain reference rate fetcher.
type ReferenceOptions struct {
	RPCURL            string
	AggregatorAddress string
	Decimals          int
	Timeout           time.Duration
}

// Reference reads a Chainlink-style price aggregator over Ethereum RPC. The
// value is advisory: ingestion compares anchor quotes against it to mark
// quality, nothing more.
type Reference struct {
	opts      ReferenceOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewReference builds a reference rate fetcher.
func NewReference(opts ReferenceOptions, logger zerolog.Logger) *Reference {
	return &Reference{opts: opts, logger: logger.With().Str("component", "reference_feed").Logger()}
}

// FetchReference retrieves the aggregator's latest answer as a decimal rate.
func (r *Reference) FetchReference(ctx context.Context) (decimal.Decimal, error) {
	if r.opts.RPCURL == "" {
		return decimal.Decimal{}, errors.New("reference rpc url not configured")
	}
	if r.opts.AggregatorAddress == "" {
		return decimal.Decimal{}, errors.New("aggregator address not configured")
	}

	timeout := r.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := r.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	addr := common.HexToAddress(r.opts.AggregatorAddress)
	payload, err := aggregatorABI.Pack("latestAnswer")
	if err != nil {
		return decimal.Decimal{}, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	outputs, err := aggregatorABI.Unpack("latestAnswer", res)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(outputs) != 1 {
		return decimal.Decimal{}, errors.New("unexpected latestAnswer response")
	}

	answer, ok := outputs[0].(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("failed to decode latestAnswer output")
	}
	if answer.Sign() <= 0 {
		return decimal.Decimal{}, errors.New("aggregator returned non-positive answer")
	}

	decimals := r.opts.Decimals
	if decimals <= 0 {
		decimals = 8
	}

	return decimal.NewFromBigInt(answer, -int32(decimals)), nil
}

func (r *Reference) getClient(ctx context.Context) (*ethclient.Client, error) {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	client, err := ethclient.DialContext(ctx, r.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	r.client = client
	return client, nil
}

var _ ReferenceSource = (*Reference)(nil)
