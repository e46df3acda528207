// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package config loads the node's file-driven configuration: chain type,
// data directory, peer seeds, mining toggle and HTTP bind address.
package config

import (
	"fmt"

	"github.com/dblokhin/epic-go/consensus"
	"github.com/spf13/viper"
)

// Config is the node's resolved runtime configuration.
type Config struct {
	ChainType    consensus.ChainType
	DataDir      string
	PeerSeeds    []string
	Mining       bool
	HTTPBindAddr string
	MaxPoolSize  int
}

// defaults are applied before the config file is read, so a minimal file
// that omits keys still produces a runnable node. A missing file is an
// error (see Load).
func defaults(v *viper.Viper) {
	v.SetDefault("chain", "mainnet")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("peer_seeds", []string{})
	v.SetDefault("mining", false)
	v.SetDefault("http_bind_addr", "127.0.0.1:3413")
	v.SetDefault("max_pool_size", 5000)
}

// Load reads configuration from path (any format viper supports: yaml,
// toml, json) and returns the resolved Config. Environment variables are
// not consulted; configuration is file-driven only.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	ct, err := parseChainType(v.GetString("chain"))
	if err != nil {
		return nil, err
	}

	return &Config{
		ChainType:    ct,
		DataDir:      v.GetString("data_dir"),
		PeerSeeds:    v.GetStringSlice("peer_seeds"),
		Mining:       v.GetBool("mining"),
		HTTPBindAddr: v.GetString("http_bind_addr"),
		MaxPoolSize:  v.GetInt("max_pool_size"),
	}, nil
}

func parseChainType(name string) (consensus.ChainType, error) {
	switch name {
	case "mainnet":
		return consensus.Mainnet, nil
	case "testnet":
		return consensus.Testnet, nil
	case "usertesting":
		return consensus.UserTesting, nil
	case "automatedtesting":
		return consensus.AutomatedTesting, nil
	default:
		return 0, fmt.Errorf("config: unknown chain type %q", name)
	}
}
