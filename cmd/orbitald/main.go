// Command orbitald is the Orbital Intents daemon: it dials every
// configured chain's RPC, wires the Reputation Engine, Auction Matcher,
// and Intent Executor into one Engine, and logs intent/execution
// progress to stderr (zap's production config). Structured like the teacher's cmd/main.go
// (env-var secret bootstrap → config load → client dial → recorder →
// construct → run loop), generalized from one hardcoded DEX client to
// a per-chain adapter registry.
package main

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	orbitalintents "github.com/orbital-labs/intents-core"
	"github.com/orbital-labs/intents-core/configs"
	"github.com/orbital-labs/intents-core/internal/chain"
	"github.com/orbital-labs/intents-core/internal/db"
	"github.com/orbital-labs/intents-core/internal/executor"
	"github.com/orbital-labs/intents-core/pkg/clock"
	"github.com/orbital-labs/intents-core/pkg/util"
)

func main() {
	logger, err := util.NewLogger()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("orbitald exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	if err := configs.LoadEnv(".env"); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	// The operator private key used to sign outbound chain-adapter
	// transactions is carried encrypted, matching the teacher's
	// ENC_PK/KEY bootstrap in cmd/main.go.
	encryptedPk := os.Getenv("ENC_PK")
	key := os.Getenv("KEY")
	if encryptedPk == "" || key == "" {
		return fmt.Errorf("ENC_PK and KEY must both be set")
	}
	privateKeyHex, err := util.Decrypt([]byte(key), encryptedPk)
	if err != nil {
		return fmt.Errorf("decrypt private key: %w", err)
	}

	configPath := os.Getenv("ORBITALD_CONFIG")
	if configPath == "" {
		configPath = "configs/orbitald.yml"
	}
	conf, err := configs.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := chain.NewRegistry()
	for name, c := range conf.Chains {
		adapter, err := chain.NewEthAdapter(c.ChainID, c.RPC, privateKeyHex)
		if err != nil {
			return fmt.Errorf("build chain adapter %s (%d): %w", name, c.ChainID, err)
		}
		registry.Register(adapter)
		logger.Info("chain adapter registered", zap.String("chain", name), zap.Uint64("chain_id", c.ChainID))
	}

	recorder, err := db.NewRecorder(conf.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect recorder: %w", err)
	}
	defer recorder.Close()

	// The cross-chain messaging protocol and the source-chain escrow
	// contract are explicitly out of scope for this distillation (spec's
	// "bridge-protocol implementation" / "Solidity sources" non-goals);
	// a production deployment supplies real chain.Bridge,
	// executor.Escrow, and executor.DestinationWatcher implementations
	// satisfying these ports in place of the in-memory stand-ins wired
	// here.
	bridge := chain.NewMockBridge()
	escrow := executor.NewMockEscrow()
	destWatcher := executor.NewMockDestinationWatcher(big.NewInt(0))

	// Executor concurrency/timeout/retry/MEV-delay bounds are fixed
	// package constants (spec §4.6); ToExecutorTuning only echoes the
	// configured values for operator visibility until the Executor
	// accepts per-deployment overrides.
	tuning := conf.ToExecutorTuning()
	logger.Info("executor tuning",
		zap.Int("max_concurrent", tuning.MaxConcurrent),
		zap.Duration("timeout", tuning.Timeout),
		zap.Int("max_retries", tuning.MaxRetries),
	)

	sysClock := clock.NewSystemClock()
	rng := clock.NewSeededRNG(uint64(sysClock.Now().UnixNano()), 0x9e3779b97f4a7c15)

	engine := orbitalintents.New(
		registry,
		bridge,
		escrow,
		destWatcher,
		recorder,
		sysClock,
		rng,
		orbitalintents.Config{},
		logger,
	)
	defer engine.Close()

	logger.Info("orbitald started",
		zap.Duration("auction_window", conf.ToAuctionWindow()),
		zap.Int("min_quotes", conf.ToMinQuotes()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	return nil
}
