package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ShardDir/internal/api"
	"ShardDir/internal/archive"
	"ShardDir/internal/committee"
	"ShardDir/internal/directory"
	"ShardDir/internal/logger"
	"ShardDir/internal/network"
)

// Node is a running directory-committee node.
type Node struct {
	cfg     *Config
	archive *archive.Archive
	network *network.Node
	service *directory.Service
	api     *api.Server
}

// NewNode creates and initializes a new node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}

	if err := n.initArchive(); err != nil {
		return nil, err
	}

	if err := n.initService(); err != nil {
		n.Close()
		return nil, err
	}

	if err := n.initNetwork(); err != nil {
		n.Close()
		return nil, err
	}

	return n, nil
}

// initArchive opens the Pebble-backed batch archive.
func (n *Node) initArchive() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	arch, err := archive.Open(n.cfg.DataPath + "/archive")
	if err != nil {
		return fmt.Errorf("init archive:\n%w", err)
	}

	n.archive = arch

	return nil
}

// initService loads the committee assignment and creates the directory
// service for the epoch.
func (n *Node) initService() error {
	registry, epoch, err := committee.LoadFile(n.cfg.CommitteePath)
	if err != nil {
		return fmt.Errorf("load committee:\n%w", err)
	}

	role, err := directory.ParseRole(n.cfg.Role)
	if err != nil {
		return err
	}

	n.service = directory.NewService(registry, role,
		directory.WithArchiver(n.archive),
		directory.WithFinalBlockTrigger(n.onBatchComplete),
	)

	n.service.StartRound(epoch, uint32(n.cfg.Round))

	return nil
}

// initNetwork starts the QUIC transport and routes inbound messages to
// the directory service.
func (n *Node) initNetwork() error {
	netCfg := network.Config{
		PrivateKey: n.cfg.PrivateKey,
		ListenAddr: n.cfg.QUICAddress,
	}

	node, err := network.NewNode(netCfg)
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}

	node.OnMessage(func(peer *network.Peer, data []byte) {
		// Rejections are logged inside the service; a dropped message
		// needs no response, the sender resubmits on its own schedule.
		_ = n.service.Process(data, peer.Address())
	})

	n.network = node

	return nil
}

// onBatchComplete is the round-completion trigger for directory nodes.
// It hands the batch to the final-block consensus coordinator; here the
// boundary is logged and the phase machine advanced.
func (n *Node) onBatchComplete(ctx directory.EpochContext, batch []directory.ShardSummary) {
	for _, item := range batch {
		logger.Info("microblock in final batch",
			"shard", item.Shard,
			"block", item.Summary.Header.BlockNum,
			"timestamp", item.Summary.Header.Timestamp,
			"tx_root", hex.EncodeToString(item.Summary.Header.TxRoot[:8]),
		)
	}

	if n.service.BeginFinalConsensus() {
		logger.Info("final block consensus started",
			"epoch", ctx.Epoch,
			"round", ctx.Round,
			"microblocks", len(batch),
		)
	}
}

// Run starts the node and blocks until a shutdown signal.
func (n *Node) Run() error {
	if err := n.network.Start(); err != nil {
		return fmt.Errorf("start network:\n%w", err)
	}

	n.api = api.New(n.cfg.HTTPAddress, n.service, n.archive)
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	return n.waitForShutdown()
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		n.api.Stop()
	}

	if n.network != nil {
		n.network.Close()
	}

	if n.archive != nil {
		n.archive.Close()
	}

	return nil
}
