package config

import (
	"os"
	"strconv"
	"strings"
)

// Config captures everything the process needs at startup. It is loaded once
// and treated as immutable for the process lifetime.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	JWTSigningKey string

	// Fee tiers in lamports, one per approval stage.
	CitizenFeeLamports uint64
	OfficerFeeLamports uint64
	ChiefFeeLamports   uint64

	// TreasuryWallet is the system escrow account that custodially holds
	// title tokens between transfer submission and decision.
	TreasuryWallet string

	// Ledger RPC endpoint and the system authority key (base58). The key
	// signs mints and memos only; it is never serialized or logged.
	SolanaRPCURL       string
	SolanaAuthorityKey string

	// Allow-sets binding officer/chief roles to verified wallets.
	OfficerWallets []string
	ChiefWallets   []string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:               envOr("JAGGA_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		CitizenFeeLamports: envLamports("FEE_CITIZEN_LAMPORTS", 20_000_000),
		OfficerFeeLamports: envLamports("FEE_OFFICER_LAMPORTS", 50_000_000),
		ChiefFeeLamports:   envLamports("FEE_CHIEF_LAMPORTS", 80_000_000),
		TreasuryWallet:     os.Getenv("TREASURY_WALLET"),
		SolanaRPCURL:       os.Getenv("SOLANA_RPC_URL"),
		SolanaAuthorityKey: os.Getenv("SOLANA_AUTHORITY_KEY"),
		OfficerWallets:     splitList(os.Getenv("OFFICER_WALLETS")),
		ChiefWallets:       splitList(os.Getenv("CHIEF_WALLETS")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envLamports(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
