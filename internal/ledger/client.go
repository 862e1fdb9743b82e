// Package ledger wraps the Solana RPC surface the registry needs: building
// unsigned transactions for client-side signing, submitting signed ones,
// minting and moving title tokens, and writing memo audit notes.
//
// Build operations fail fast when the RPC endpoint is unset. Record
// operations (mint, transfer, memo) instead degrade to a synthetic
// placeholder Ref so registry correctness off-ledger is never blocked by
// ledger availability.
package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"jagga/internal/platform/metrics"
	dErrors "jagga/pkg/domain-errors"
)

// Config carries the adapter's startup configuration. AuthorityKey is the
// system's fee-paying and mint-authority keypair (base58); it is loaded once
// here and must never be serialized or logged.
type Config struct {
	RPCURL       string
	AuthorityKey string
}

// Client talks to the Solana network. A zero-configured client is valid and
// permanently degraded.
type Client struct {
	rpc       *rpc.Client
	authority solana.PrivateKey
	logger    *slog.Logger
	metrics   *metrics.Metrics

	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// Option configures the Client.
type Option func(*Client)

// WithMetrics records degraded record-operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithConfirmTimeout bounds the post-broadcast confirmation wait.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Client) { c.confirmTimeout = d }
}

// New builds the adapter. An empty RPC URL or authority key yields a
// degraded client rather than an error: the registry must keep working with
// the ledger offline.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		logger:         logger,
		confirmTimeout: 60 * time.Second,
		pollInterval:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.RPCURL == "" || cfg.AuthorityKey == "" {
		logger.Warn("ledger not configured; record operations will degrade to placeholders")
		return c, nil
	}

	key, err := solana.PrivateKeyFromBase58(cfg.AuthorityKey)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse authority key: %w", err)
	}
	c.authority = key
	c.rpc = rpc.New(cfg.RPCURL)
	return c, nil
}

// Configured reports whether the client can reach the ledger network.
func (c *Client) Configured() bool { return c.rpc != nil }

// AuthorityWallet returns the system authority's public address, or "" when
// unconfigured. The private half never leaves this package.
func (c *Client) AuthorityWallet() string {
	if !c.Configured() {
		return ""
	}
	return c.authority.PublicKey().String()
}

var errNotConfigured = dErrors.New(dErrors.CodeUnavailable, "ledger rpc not configured")

// BuildFeeTransferTx returns a base64 unsigned transaction moving lamports
// from one wallet to another. The caller signs it and hands it back to
// SubmitSignedTx.
func (c *Client) BuildFeeTransferTx(ctx context.Context, from, to string, lamports uint64) (string, error) {
	if !c.Configured() {
		return "", errNotConfigured
	}
	fromPub, err := parseWallet(from, "from")
	if err != nil {
		return "", err
	}
	toPub, err := parseWallet(to, "to")
	if err != nil {
		return "", err
	}

	instrs := []solana.Instruction{
		system.NewTransferInstruction(lamports, fromPub, toPub).Build(),
	}
	return c.buildUnsigned(ctx, instrs, fromPub)
}

// RegistrationPayload is the audit memo attached to a registration fee
// transaction.
type RegistrationPayload struct {
	OwnerName    string `json:"ownerName"`
	District     string `json:"district"`
	Municipality string `json:"municipality"`
}

// BuildRegistrationTx returns a base64 unsigned transaction combining the
// citizen-tier fee transfer to the treasury with a memo describing the
// registration, so the fee proof itself carries the audit payload.
func (c *Client) BuildRegistrationTx(ctx context.Context, from, treasury string, lamports uint64, payload RegistrationPayload) (string, error) {
	if !c.Configured() {
		return "", errNotConfigured
	}
	fromPub, err := parseWallet(from, "from")
	if err != nil {
		return "", err
	}
	treasuryPub, err := parseWallet(treasury, "treasury")
	if err != nil {
		return "", err
	}

	memoBody, err := json.Marshal(payload)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode registration payload")
	}

	instrs := []solana.Instruction{
		system.NewTransferInstruction(lamports, fromPub, treasuryPub).Build(),
		memoInstruction("jagga:REGISTRATION:" + string(memoBody)),
	}
	return c.buildUnsigned(ctx, instrs, fromPub)
}

// BuildTokenTransferTx returns a base64 unsigned transaction moving one unit
// of the title token between wallets, creating the destination holding
// account when absent. Used to pre-stage a token into treasury escrow at
// transfer-request submission.
func (c *Client) BuildTokenTransferTx(ctx context.Context, tokenRef, from, to string) (string, error) {
	if !c.Configured() {
		return "", errNotConfigured
	}
	mint, err := parseWallet(tokenRef, "tokenRef")
	if err != nil {
		return "", err
	}
	fromPub, err := parseWallet(from, "from")
	if err != nil {
		return "", err
	}
	toPub, err := parseWallet(to, "to")
	if err != nil {
		return "", err
	}

	instrs, err := c.tokenTransferInstructions(ctx, mint, fromPub, toPub, fromPub)
	if err != nil {
		return "", err
	}
	return c.buildUnsigned(ctx, instrs, fromPub)
}

// SubmitSignedTx broadcasts a base64 signed transaction and waits for
// confirmation. Failures surface as submission errors and are never retried
// here; retry policy belongs to the signing client.
func (c *Client) SubmitSignedTx(ctx context.Context, signedB64 string) (string, error) {
	if !c.Configured() {
		return "", errNotConfigured
	}
	raw, err := base64.StdEncoding.DecodeString(signedB64)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "signed transaction must be base64")
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "malformed signed transaction")
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeSubmissionFailed, "broadcast failed")
	}
	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return "", err
	}
	return sig.String(), nil
}

// TokenMetadata labels a freshly minted title token.
type TokenMetadata struct {
	TitleNo      int64
	OwnerName    string
	District     string
	Municipality string
}

// MintTitleToken creates a single-unit zero-decimal token for a parcel and
// mints it to the owner's wallet. Returns (tokenRef, txRef). Degraded mode
// returns a zero tokenRef and a placeholder txRef.
func (c *Client) MintTitleToken(ctx context.Context, ownerWallet string, meta TokenMetadata) (Ref, Ref) {
	if !c.Configured() {
		return Ref{}, c.degrade("mint", nil)
	}
	ownerPub, err := solana.PublicKeyFromBase58(ownerWallet)
	if err != nil {
		return Ref{}, c.degrade("mint", err)
	}

	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Ref{}, c.degrade("mint", err)
	}
	mintPub := mintKey.PublicKey()
	authorityPub := c.authority.PublicKey()

	rent, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, token.MINT_SIZE, rpc.CommitmentFinalized)
	if err != nil {
		return Ref{}, c.degrade("mint", err)
	}

	ownerATA, _, err := solana.FindAssociatedTokenAddress(ownerPub, mintPub)
	if err != nil {
		return Ref{}, c.degrade("mint", err)
	}

	instrs := []solana.Instruction{
		system.NewCreateAccountInstruction(rent, token.MINT_SIZE, token.ProgramID, authorityPub, mintPub).Build(),
		token.NewInitializeMintInstruction(0, authorityPub, authorityPub, mintPub, solana.SysVarRentPubkey).Build(),
		associatedtokenaccount.NewCreateInstruction(authorityPub, ownerPub, mintPub).Build(),
		token.NewMintToInstruction(1, mintPub, ownerATA, authorityPub, nil).Build(),
		memoInstruction(fmt.Sprintf("jagga:MINT:%d:%s:%s:%s:%s",
			meta.TitleNo, ownerWallet, meta.OwnerName, meta.District, meta.Municipality)),
	}

	sig, err := c.signAndSend(ctx, instrs, &mintKey)
	if err != nil {
		return Ref{}, c.degrade("mint", err)
	}
	return Confirmed(mintPub.String()), Confirmed(sig.String())
}

// TransferTitleToken moves one unit of the title token between holding
// accounts, signed by the system authority. Used for escrow release to the
// recipient on approval and escrow return to the submitter on rejection.
func (c *Client) TransferTitleToken(ctx context.Context, tokenRef, fromWallet, toWallet string) Ref {
	if !c.Configured() {
		return c.degrade("token_transfer", nil)
	}
	mint, err := solana.PublicKeyFromBase58(tokenRef)
	if err != nil {
		return c.degrade("token_transfer", err)
	}
	fromPub, err := solana.PublicKeyFromBase58(fromWallet)
	if err != nil {
		return c.degrade("token_transfer", err)
	}
	toPub, err := solana.PublicKeyFromBase58(toWallet)
	if err != nil {
		return c.degrade("token_transfer", err)
	}

	instrs, err := c.tokenTransferInstructions(ctx, mint, fromPub, toPub, c.authority.PublicKey())
	if err != nil {
		return c.degrade("token_transfer", err)
	}
	sig, err := c.signAndSend(ctx, instrs, nil)
	if err != nil {
		return c.degrade("token_transfer", err)
	}
	return Confirmed(sig.String())
}

// WriteMemo appends an immutable audit note to the ledger.
func (c *Client) WriteMemo(ctx context.Context, text string) Ref {
	if !c.Configured() {
		return c.degrade("memo", nil)
	}
	sig, err := c.signAndSend(ctx, []solana.Instruction{memoInstruction(text)}, nil)
	if err != nil {
		return c.degrade("memo", err)
	}
	return Confirmed(sig.String())
}

// tokenTransferInstructions builds a one-unit transfer, creating the
// destination holding account first when it does not exist. payer funds the
// account creation.
func (c *Client) tokenTransferInstructions(ctx context.Context, mint, fromPub, toPub, payer solana.PublicKey) ([]solana.Instruction, error) {
	fromATA, _, err := solana.FindAssociatedTokenAddress(fromPub, mint)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "derive source holding account")
	}
	toATA, _, err := solana.FindAssociatedTokenAddress(toPub, mint)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "derive destination holding account")
	}

	var instrs []solana.Instruction
	if _, err := c.rpc.GetAccountInfo(ctx, toATA); err != nil {
		// Treat any lookup failure as "absent" and let the create
		// instruction settle it on-chain.
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(payer, toPub, mint).Build())
	}
	instrs = append(instrs, token.NewTransferInstruction(1, fromATA, toATA, fromPub, nil).Build())
	return instrs, nil
}

func (c *Client) buildUnsigned(ctx context.Context, instrs []solana.Instruction, payer solana.PublicKey) (string, error) {
	blockhash, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "fetch recent blockhash")
	}
	tx, err := solana.NewTransaction(instrs, blockhash.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "assemble transaction")
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "encode transaction")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// signAndSend assembles, signs (authority plus an optional extra keypair,
// e.g. a fresh mint account), broadcasts, and waits for confirmation.
func (c *Client) signAndSend(ctx context.Context, instrs []solana.Instruction, extra *solana.PrivateKey) (solana.Signature, error) {
	blockhash, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch recent blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(instrs, blockhash.Value.Blockhash, solana.TransactionPayer(c.authority.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("assemble transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.authority.PublicKey()) {
			return &c.authority
		}
		if extra != nil && key.Equals(extra.PublicKey()) {
			return extra
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("broadcast: %w", err)
	}
	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// awaitConfirmation polls signature status until the transaction confirms,
// the timeout elapses, or the context is done. A stalled confirmation never
// holds a record-store lock; callers only reach here after their own commits.
func (c *Client) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeSubmissionFailed, "confirmation timed out")
		case <-ticker.C:
			out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			status := out.Value[0]
			if status.Err != nil {
				return dErrors.New(dErrors.CodeSubmissionFailed, "transaction failed on ledger")
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}
	}
}

func (c *Client) degrade(op string, err error) Ref {
	if err != nil {
		c.logger.Warn("ledger operation degraded", "op", op, "error", err)
	}
	if c.metrics != nil {
		c.metrics.LedgerDegradedOps.WithLabelValues(op).Inc()
	}
	return Degraded()
}

func memoInstruction(text string) solana.Instruction {
	return solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{}, []byte(text))
}

func parseWallet(s, field string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, dErrors.New(dErrors.CodeValidation, field+" wallet is required")
	}
	pub, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, dErrors.Wrap(err, dErrors.CodeValidation, field+" is not a valid wallet address")
	}
	return pub, nil
}
