package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"shelfledger/config"
	"shelfledger/core"
	"shelfledger/native/assets"
	"shelfledger/observability/logging"
	"shelfledger/rpc"
	"shelfledger/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the configuration file")
	rpcAddr := flag.String("rpc", "", "override the RPC listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *rpcAddr != "" {
		cfg.RPCAddress = *rpcAddr
	}

	logger := logging.Setup("shelfd", cfg.Environment, cfg.LogFile)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Standalone deployments run against the in-process asset registry. An
	// integration with a real asset program swaps this binding out.
	node := core.NewNode(db, assets.NewRegistry())

	server := rpc.NewServer(node, logger)
	logger.Info("shelfd started", "dataDir", cfg.DataDir, "rpc", cfg.RPCAddress)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server terminated", "error", err)
		os.Exit(1)
	}
}
