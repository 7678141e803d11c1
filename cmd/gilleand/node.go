package main

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"gillean.network/gillean/internal/chain"
	"gillean.network/gillean/internal/config"
	"gillean.network/gillean/internal/consensus"
	"gillean.network/gillean/internal/network"
	"gillean.network/gillean/internal/pos"
	"gillean.network/gillean/internal/pow"
	"gillean.network/gillean/internal/shard"
	"gillean.network/gillean/internal/storage"
	"gillean.network/gillean/internal/wallet"
)

// blockInterval is how often the consensus engine attempts to seal a
// candidate block per shard.
const blockInterval = 5 * time.Second

// node is every running component of one gilleand process, grounded on
// the teacher's runNode()'s sequential-initialization-with-logging
// shape (empower1d's main.go), generalized from one hard-coded chain
// to the full shard/network/consensus stack.
type node struct {
	cfg     *config.Config
	store   *storage.Store
	wallets *wallet.Manager
	shards  *shard.Manager
	net     *network.Manager
	engine  *consensus.Engine
	http    *http.Server
}

// runNode wires every component per SPEC_FULL.md §2, in the order the
// teacher's empower1d/main.go establishes: storage first, then the
// chain/consensus state built on top of it, then networking, then the
// consensus engine that ties them together.
func runNode(cfg *config.Config, proposer string) (*node, error) {
	log.Println("GILLEAND: initializing node components...")

	dbPath := filepath.Join(cfg.DataDir, "gillean.db")
	store, err := storage.Open(dbPath, filepath.Join(cfg.DataDir, "backups"))
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	log.Printf("GILLEAND: storage opened at %s", dbPath)

	health, err := store.GetStorageHealth(time.Now().Unix())
	if err != nil {
		log.Printf("GILLEAND: storage health check failed: %v", err)
	} else {
		log.Printf("GILLEAND: storage health: backup=%s corrupted=%v size=%d bytes", health.BackupStatus, health.CorruptionDetected, health.DatabaseSizeBytes)
	}

	walletMgr := wallet.NewManager(store)

	mode := chain.ModeProofOfWork
	var newPow func() *pow.Engine
	var newPos func() *pos.Engine
	if cfg.Mode == "pos" {
		mode = chain.ModeProofOfStake
		posCfg := cfg.PoSConfig()
		newPos = func() *pos.Engine {
			e, err := pos.New(posCfg, time.Now().Unix())
			if err != nil {
				log.Fatalf("GILLEAND: construct pos engine: %v", err)
			}
			return e
		}
	} else {
		powDifficulty := cfg.PoW.Difficulty
		powMaxAttempts := cfg.PoW.MaxAttempts
		newPow = func() *pow.Engine {
			e, err := pow.New(powDifficulty, powMaxAttempts)
			if err != nil {
				log.Fatalf("GILLEAND: construct pow engine: %v", err)
			}
			return e
		}
	}

	shards, err := shard.NewManager(mode, newPow, newPos, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("initialize shard manager: %w", err)
	}
	log.Printf("GILLEAND: %d shards initialized in %s mode", shard.NumShards, cfg.Mode)

	netMgr := network.NewManager(proposer)

	engine := consensus.NewEngine(shards, netMgr, proposer, blockInterval, nil)
	engine.Start()
	log.Println("GILLEAND: consensus engine started")

	mux := http.NewServeMux()
	mux.HandleFunc("/p2p", func(w http.ResponseWriter, r *http.Request) {
		peerID := r.URL.Query().Get("node_id")
		if peerID == "" {
			peerID = r.RemoteAddr
		}
		if err := netMgr.Accept(peerID, w, r); err != nil {
			log.Printf("GILLEAND: peer accept from %s failed: %v", peerID, err)
		}
	})
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("GILLEAND: p2p listener stopped: %v", err)
		}
	}()
	log.Printf("GILLEAND: p2p listener started on %s", cfg.ListenAddr)

	return &node{
		cfg:     cfg,
		store:   store,
		wallets: walletMgr,
		shards:  shards,
		net:     netMgr,
		engine:  engine,
		http:    httpServer,
	}, nil
}

// Stop shuts every component down in the reverse order runNode started
// them, matching empower1d's main()'s graceful-shutdown sequence.
func (n *node) Stop() {
	log.Println("GILLEAND: shutting down...")
	_ = n.http.Close()
	n.engine.Stop()
	n.net.Shutdown()
	if err := n.store.Close(); err != nil {
		log.Printf("GILLEAND: close storage: %v", err)
	}
	log.Println("GILLEAND: shut down complete")
}
