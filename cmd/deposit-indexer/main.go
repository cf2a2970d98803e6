package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/chain"
	"github.com/ads-marketplace/campaign-backend/internal/config"
	"github.com/ads-marketplace/campaign-backend/internal/db"
	"github.com/ads-marketplace/campaign-backend/internal/events"
	"github.com/ads-marketplace/campaign-backend/internal/logger"
	"github.com/ads-marketplace/campaign-backend/internal/metrics"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ads-marketplace/campaign-backend/internal/repositories"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisCursorBlock = "deposit-indexer:cursor:block"
	redisProcessed   = "deposit-indexer:tx:"
	processedTTL     = 7 * 24 * time.Hour
	blockBatchSize   = 2000
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ChainRPCURL == "" {
		log.Fatal("CHAIN_RPC_URL is required")
	}
	if cfg.TokenContractAddress == (common.Address{}) {
		log.Fatal("TOKEN_CONTRACT_ADDRESS is required")
	}
	if cfg.EscrowAddress == (common.Address{}) {
		log.Fatal("ESCROW_ADDRESS is required")
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	client, err := ethclient.DialContext(ctx, cfg.ChainRPCURL)
	if err != nil {
		log.Fatal("failed to connect to chain rpc", zap.Error(err))
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatal("failed to read chain id", zap.Error(err))
	}
	if chainID.Int64() != cfg.ChainID {
		log.Fatal("chain id mismatch",
			zap.Int64("expected", cfg.ChainID),
			zap.String("rpc", chainID.String()),
		)
	}

	ix := &indexer{
		client:    client,
		ledger:    repositories.NewLedgerRepo(pool),
		publisher: events.NewRedisPublisher(rdb, log),
		rdb:       rdb,
		cfg:       cfg,
		log:       log,
	}

	log.Info("deposit indexer started",
		zap.String("token", cfg.TokenContractAddress.Hex()),
		zap.String("escrow", cfg.EscrowAddress.Hex()),
		zap.Int("confirmations", cfg.IndexerConfirmations),
	)

	ix.initCursor(ctx)

	ticker := time.NewTicker(cfg.IndexerPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := ix.pollAndProcess(ctx); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down deposit indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

type indexer struct {
	client    *ethclient.Client
	ledger    *repositories.LedgerRepo
	publisher events.Publisher
	rdb       *redis.Client
	cfg       *config.Config
	log       *zap.Logger
}

// initCursor starts a fresh indexer at INDEXER_START_BLOCK, or at the current
// safe head when no start block is configured.
func (ix *indexer) initCursor(ctx context.Context) {
	existing, _ := ix.rdb.Get(ctx, redisCursorBlock).Result()
	if existing != "" {
		ix.log.Info("resuming from saved cursor", zap.String("block", existing))
		return
	}

	start := ix.cfg.IndexerStartBlock
	if start == 0 {
		head, err := ix.safeHead(ctx)
		if err != nil {
			ix.log.Warn("failed to get head for cursor init", zap.Error(err))
		}
		start = head
	} else {
		start--
	}
	ix.saveCursor(ctx, start)
	ix.log.Info("cursor initialized", zap.Uint64("block", start))
}

func (ix *indexer) loadCursor(ctx context.Context) uint64 {
	val, err := ix.rdb.Get(ctx, redisCursorBlock).Result()
	if err != nil || val == "" {
		return 0
	}
	n, _ := strconv.ParseUint(val, 10, 64)
	return n
}

func (ix *indexer) saveCursor(ctx context.Context, block uint64) {
	ix.rdb.Set(ctx, redisCursorBlock, strconv.FormatUint(block, 10), 0)
	metrics.IndexerBlock.Set(float64(block))
}

func (ix *indexer) safeHead(ctx context.Context) (uint64, error) {
	head, err := ix.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	conf := uint64(ix.cfg.IndexerConfirmations)
	if head < conf {
		return 0, nil
	}
	return head - conf, nil
}

// pollAndProcess scans (cursor, safeHead] in batches and credits every
// Transfer into the escrow address. The cursor only moves past a batch
// once all of its logs are handled.
func (ix *indexer) pollAndProcess(ctx context.Context) error {
	cursor := ix.loadCursor(ctx)

	head, err := ix.safeHead(ctx)
	if err != nil {
		return fmt.Errorf("get head: %w", err)
	}
	if head <= cursor {
		return nil
	}

	escrowTopic := common.BytesToHash(ix.cfg.EscrowAddress.Bytes())

	for from := cursor + 1; from <= head; from += blockBatchSize {
		to := from + blockBatchSize - 1
		if to > head {
			to = head
		}

		logs, err := ix.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{ix.cfg.TokenContractAddress},
			Topics:    [][]common.Hash{{chain.TransferTopic}, nil, {escrowTopic}},
		})
		if err != nil {
			return fmt.Errorf("filter logs [%d, %d]: %w", from, to, err)
		}

		if len(logs) > 0 {
			ix.log.Info("found transfers", zap.Int("count", len(logs)), zap.Uint64("from", from), zap.Uint64("to", to))
		}
		for _, l := range logs {
			if l.Removed {
				continue
			}
			tr, err := chain.DecodeTransfer(l)
			if err != nil {
				ix.log.Warn("skipping malformed log", zap.Error(err))
				continue
			}
			if err := ix.processTransfer(ctx, tr); err != nil {
				return err
			}
		}

		ix.saveCursor(ctx, to)
	}
	return nil
}

// processTransfer credits one deposit. Zero-value transfers are recorded
// as ignored so they are not re-examined.
func (ix *indexer) processTransfer(ctx context.Context, tr *chain.TransferLog) error {
	txKey := fmt.Sprintf("%s%s:%d", redisProcessed, tr.TxHash.Hex(), tr.LogIndex)
	if ix.rdb.Exists(ctx, txKey).Val() > 0 {
		return nil
	}

	status := models.DepositStatusCredited
	if tr.Amount.Sign() == 0 {
		status = models.DepositStatusIgnored
	}

	d := &models.Deposit{
		TxHash:      tr.TxHash.Hex(),
		LogIndex:    tr.LogIndex,
		BlockNumber: tr.BlockNumber,
		FromAddress: tr.From.Hex(),
		Amount:      tr.Amount.String(),
		Status:      status,
	}

	created, err := ix.ledger.CreditDeposit(ctx, d)
	if err != nil {
		return fmt.Errorf("credit deposit %s/%d: %w", d.TxHash, d.LogIndex, err)
	}
	ix.rdb.Set(ctx, txKey, status, processedTTL)

	if !created || status != models.DepositStatusCredited {
		return nil
	}

	metrics.DepositsCredited.Inc()
	ix.log.Info("deposit credited",
		zap.String("tx", d.TxHash),
		zap.Uint("log_index", d.LogIndex),
		zap.String("from", d.FromAddress),
		zap.String("amount", chain.FormatUnits(tr.Amount, ix.cfg.TokenDecimals)),
	)

	if err := ix.publisher.Publish(ctx, events.StreamNotifications, events.Event{
		Type: events.EventDepositCredited,
		Payload: map[string]any{
			"tx_hash":   d.TxHash,
			"log_index": d.LogIndex,
			"from":      d.FromAddress,
			"amount":    d.Amount,
			"block":     d.BlockNumber,
		},
	}); err != nil {
		ix.log.Warn("failed to publish deposit event", zap.Error(err))
	}
	return nil
}
