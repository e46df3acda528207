// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dblokhin/epic-go/chain"
	"github.com/dblokhin/epic-go/config"
	"github.com/dblokhin/epic-go/consensus"
	"github.com/dblokhin/epic-go/mining"
	"github.com/dblokhin/epic-go/p2p"
	"github.com/dblokhin/epic-go/store"
	"github.com/dblokhin/epic-go/txpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is the node's reported software version, set at release time.
const version = "0.1.0"

func init() {
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "epic-node",
		Short: "epic full node: chain validation, mining, and p2p sync",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to node config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the node version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "start the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(configPath)
		},
	})

	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func runNode(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logrus.Infof("starting epic-go node (chain=%v data_dir=%s)", cfg.ChainType, cfg.DataDir)

	s, err := store.Open(filepath.Join(cfg.DataDir, "chaindata"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	wallets, err := loadFoundationWallets(cfg)
	if err != nil {
		return fmt.Errorf("load foundation ledger: %w", err)
	}

	genesis := chain.GenesisFor(cfg.ChainType)
	c, err := chain.New(cfg.ChainType, s, &genesis, wallets)
	if err != nil {
		return fmt.Errorf("open chain: %w", err)
	}

	pool := txpool.New(cfg.MaxPoolSize)
	stem := txpool.NewStempool(stemSeed(cfg))

	syncer := p2p.NewSyncer(cfg.ChainType, c, pool, stem)
	syncer.Start(cfg.PeerSeeds)
	defer syncer.Stop()

	if cfg.Mining {
		svc := mining.NewService(cfg.ChainType, c, pool)
		logrus.Info("mining enabled")
		_ = svc // driven by an external miner client over GetBlockTemplate/SubmitBlock
	}

	logrus.Infof("node ready, http bind %s", cfg.HTTPBindAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logrus.Info("shutting down")
	return nil
}

// loadFoundationWallets reads the foundation ledger from <data_dir>/foundation.json,
// if present. A missing file is not an error: it just leaves foundation-output
// enforcement disabled, which is expected on test chains and during early bring-up.
func loadFoundationWallets(cfg *config.Config) (map[uint64]consensus.FoundationWallet, error) {
	path := filepath.Join(cfg.DataDir, "foundation.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return consensus.LoadFoundationWallets(path)
}

// stemSeed derives a deterministic-per-run Dandelion relay-role seed from
// the node's configured HTTP bind address, so two nodes sharing the same
// config don't roll identical stem/fluff schedules.
func stemSeed(cfg *config.Config) int64 {
	var seed int64
	for _, b := range []byte(cfg.HTTPBindAddr) {
		seed = seed*31 + int64(b)
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
