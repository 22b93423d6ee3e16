// Package flowchain implements the ledger interfaces on the Flow blockchain
// through the access API, over http or grpc.
package flowchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/ledger"
	"github.com/mohitkumar/txflow/logger"
	"github.com/mohitkumar/txflow/model"
	"github.com/onflow/cadence"
	"github.com/onflow/flow-go-sdk"
	"github.com/onflow/flow-go-sdk/access"
	flowgrpc "github.com/onflow/flow-go-sdk/access/grpc"
	flowhttp "github.com/onflow/flow-go-sdk/access/http"
	"github.com/onflow/flow-go-sdk/crypto"
	"go.opencensus.io/plugin/ocgrpc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	TRANSPORT_HTTP = "http"
	TRANSPORT_GRPC = "grpc"

	defaultComputeLimit uint64 = 9999
)

// NewAccessClient connects to the configured access node.
func NewAccessClient(cfg config.LedgerConfig) (access.Client, error) {
	switch cfg.Transport {
	case TRANSPORT_GRPC:
		return flowgrpc.NewClient(cfg.AccessNode, flowgrpc.WithGRPCDialOptions(dialOptions()...))
	case TRANSPORT_HTTP, "":
		host := cfg.AccessNode
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			host = "https://" + host + "/v1"
		}
		return flowhttp.NewClient(host)
	}
	return nil, fmt.Errorf("unsupported ledger transport %q", cfg.Transport)
}

func dialOptions() []grpc.DialOption {
	zapOpts := []grpc_zap.Option{
		grpc_zap.WithDurationField(
			func(duration time.Duration) zapcore.Field {
				return zap.Int64(
					"grpc.time_ns",
					duration.Nanoseconds(),
				)
			},
		),
	}
	clientLogger := logger.L().Named("flow-access")
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(&ocgrpc.ClientHandler{}),
		grpc.WithUnaryInterceptor(grpc_middleware.ChainUnaryClient(
			grpc_retry.UnaryClientInterceptor(
				grpc_retry.WithCodes(codes.Unavailable, codes.ResourceExhausted),
				grpc_retry.WithMax(3),
				grpc_retry.WithBackoff(grpc_retry.BackoffExponential(100*time.Millisecond)),
			),
			grpc_zap.UnaryClientInterceptor(clientLogger, zapOpts...),
		)),
	}
}

type Ledger struct {
	client        access.Client
	programs      *Programs
	signerAddress flow.Address
	signerKey     crypto.PrivateKey
	computeLimit  uint64
	// dispatches share the proposal key so they are serialized to keep sequence numbers valid
	mu sync.Mutex
}

var _ ledger.Ledger = new(Ledger)

func New(client access.Client, cfg config.LedgerConfig) (*Ledger, error) {
	if cfg.SignerAddress == "" || cfg.SignerKeyHex == "" {
		return nil, errors.New("signer address and key are required for the flow ledger")
	}
	key, err := crypto.DecodePrivateKeyHex(crypto.ECDSA_P256, strings.TrimPrefix(cfg.SignerKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	limit := cfg.DefaultComputeLimit
	if limit == 0 {
		limit = defaultComputeLimit
	}
	return &Ledger{
		client:        client,
		programs:      NewPrograms(cfg.Contracts),
		signerAddress: flow.HexToAddress(cfg.SignerAddress),
		signerKey:     key,
		computeLimit:  limit,
	}, nil
}

func (l *Ledger) Dispatch(ctx context.Context, req model.OperationRequest) (model.OperationHandle, error) {
	script, err := l.programs.Script(req.ProgramID)
	if err != nil {
		return "", err
	}
	args := make([]cadence.Value, 0, len(req.Arguments))
	for _, arg := range req.Arguments {
		v, err := ToCadence(arg)
		if err != nil {
			return "", err
		}
		args = append(args, v)
	}
	limit := req.ResourceLimit
	if limit == 0 {
		limit = l.computeLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	account, err := l.client.GetAccount(ctx, l.signerAddress)
	if err != nil {
		return "", fmt.Errorf("get signer account: %w", err)
	}
	if len(account.Keys) == 0 {
		return "", fmt.Errorf("signer account %s has no keys", l.signerAddress)
	}
	key := account.Keys[0]
	signer, err := crypto.NewInMemorySigner(l.signerKey, key.HashAlgo)
	if err != nil {
		return "", fmt.Errorf("load signer: %w", err)
	}
	header, err := l.client.GetLatestBlockHeader(ctx, true)
	if err != nil {
		return "", fmt.Errorf("get reference block: %w", err)
	}

	tx := flow.NewTransaction().
		SetScript(script).
		SetComputeLimit(limit).
		SetReferenceBlockID(header.ID).
		SetProposalKey(l.signerAddress, key.Index, key.SequenceNumber).
		SetPayer(l.signerAddress).
		AddAuthorizer(l.signerAddress)
	for _, arg := range args {
		if err := tx.AddArgument(arg); err != nil {
			return "", fmt.Errorf("encode argument: %w", err)
		}
	}
	if err := tx.SignEnvelope(l.signerAddress, key.Index, signer); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := l.client.SendTransaction(ctx, *tx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	handle := model.OperationHandle(tx.ID().Hex())
	logger.Info("transaction sent", zap.String("program", req.ProgramID), zap.String("handle", handle.String()))
	return handle, nil
}

func (l *Ledger) Status(ctx context.Context, handle model.OperationHandle) (model.OperationStatus, error) {
	result, err := l.client.GetTransactionResult(ctx, flow.HexToID(handle.String()))
	if err != nil {
		if isNotFound(err) {
			return model.OperationStatus{}, &model.NotFoundError{Handle: handle}
		}
		return model.OperationStatus{}, &model.NetworkError{Op: "get transaction result", Err: err}
	}
	return mapResult(result), nil
}

// HasReceipt reports whether address holds an unrevealed gacha receipt.
func (l *Ledger) HasReceipt(ctx context.Context, address string) (bool, error) {
	script, err := l.programs.Query("has-receipt")
	if err != nil {
		return false, err
	}
	value, err := l.client.ExecuteScriptAtLatestBlock(ctx, script, []cadence.Value{cadence.NewAddress(flow.HexToAddress(address))})
	if err != nil {
		return false, &model.NetworkError{Op: "execute has-receipt", Err: err}
	}
	b, ok := value.(cadence.Bool)
	if !ok {
		return false, fmt.Errorf("has-receipt returned %s", value.Type().ID())
	}
	return bool(b), nil
}

func isNotFound(err error) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.NotFound {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

var phases = map[flow.TransactionStatus]model.Phase{
	flow.TransactionStatusUnknown:   model.PHASE_UNKNOWN,
	flow.TransactionStatusPending:   model.PHASE_PENDING,
	flow.TransactionStatusFinalized: model.PHASE_INCLUDED,
	flow.TransactionStatusExecuted:  model.PHASE_FINALIZED,
	flow.TransactionStatusSealed:    model.PHASE_SEALED,
	flow.TransactionStatusExpired:   model.PHASE_EXPIRED,
}

func mapResult(result *flow.TransactionResult) model.OperationStatus {
	st := model.OperationStatus{Phase: phases[result.Status]}
	if result.Error != nil {
		st.ExecutionCode = 1
		st.RawErrorTrace = result.Error.Error()
	}
	for _, ev := range result.Events {
		payload := make(map[string]any)
		for name, value := range cadence.FieldsMappedByName(ev.Value) {
			payload[name] = FromCadence(value)
		}
		st.Events = append(st.Events, model.Event{Type: ev.Type, Payload: payload})
	}
	return st
}
