package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                   string
	Port                  string
	DatabaseURL           string
	RedisURL              string
	LedgerRPCURL          string // Solana RPC endpoint; empty = in-memory ledger (dev/tests)
	PoolProgramID         string // deployed pool program address
	FeePayerKey           string // base58 private key paying network fees
	TreasuryWallet        string // escrow wallet funding owner payouts and dividend settlement
	SuperadminWallets     []string
	OperatorWallets       []string
	VerifierWallets       []string
	OwnerMinFraudScore    float64 // minimum fraud score for owner-submitted reports
	OperatorMinFraudScore float64 // lower bar for operator-submitted reports
	HealthAdminKeyHash    string  // bcrypt hash guarding /reset and /health/errors
	FrontendURLEndsWith   string
	DevPassword           string
	AllowCrossSiteDev     bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	ownerMin := viper.GetFloat64("OWNER_MIN_FRAUD_SCORE")
	if ownerMin == 0 {
		ownerMin = 70
	}
	operatorMin := viper.GetFloat64("OPERATOR_MIN_FRAUD_SCORE")
	if operatorMin == 0 {
		operatorMin = 50
	}

	return &Config{
		Env:                   env,
		Port:                  port,
		DatabaseURL:           dbURL,
		RedisURL:              viper.GetString("REDIS_URL"),
		LedgerRPCURL:          viper.GetString("LEDGER_RPC_URL"),
		PoolProgramID:         viper.GetString("POOL_PROGRAM_ID"),
		FeePayerKey:           viper.GetString("FEE_PAYER_KEY"),
		TreasuryWallet:        viper.GetString("TREASURY_WALLET"),
		SuperadminWallets:     wallets(viper.GetString("SUPERADMIN_WALLETS")),
		OperatorWallets:       wallets(viper.GetString("OPERATOR_WALLETS")),
		VerifierWallets:       wallets(viper.GetString("VERIFIER_WALLETS")),
		OwnerMinFraudScore:    ownerMin,
		OperatorMinFraudScore: operatorMin,
		HealthAdminKeyHash:    viper.GetString("HEALTH_ADMIN_KEY_HASH"),
		FrontendURLEndsWith:   viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:           viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:     strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
	}, nil
}

// wallets splits a comma-separated allow-list, trimming blanks.
func wallets(s string) []string {
	var out []string
	for _, w := range strings.Split(s, ",") {
		w = strings.TrimSpace(w)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
