package dex

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pool describes one on-chain liquidity pool a plugin can quote against.
type Pool struct {
	Protocol     string `yaml:"protocol"`
	Address      string `yaml:"address"`
	ResourceType string `yaml:"resource_type"`
	CoinX        string `yaml:"coin_x"`
	CoinY        string `yaml:"coin_y"`
}

// Matches reports whether the pool covers the requested pair and whether the
// swap direction runs from X to Y.
func (p Pool) Matches(fromToken, toToken string) (ok, forward bool) {
	if p.CoinX == fromToken && p.CoinY == toToken {
		return true, true
	}
	if p.CoinY == fromToken && p.CoinX == toToken {
		return true, false
	}
	return false, false
}

// PoolDefinitions models the structure of configs/pools.yaml.
type PoolDefinitions struct {
	Pools []Pool `yaml:"pools"`
}

// LoadPoolDefinitions parses the YAML file listing known pools. An empty
// path yields an empty set rather than an error.
func LoadPoolDefinitions(path string) (PoolDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return PoolDefinitions{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return PoolDefinitions{}, fmt.Errorf("read pool definitions: %w", err)
	}

	var defs PoolDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return PoolDefinitions{}, fmt.Errorf("parse pool definitions: %w", err)
	}
	return defs, nil
}

// ForProtocol returns the pools declared for a given protocol name.
func (d PoolDefinitions) ForProtocol(protocol string) []Pool {
	var pools []Pool
	for _, pool := range d.Pools {
		if pool.Protocol == protocol {
			pools = append(pools, pool)
		}
	}
	return pools
}
