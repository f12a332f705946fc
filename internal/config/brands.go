package config

import (
	"fmt"
	"slices"
	"strings"
)

// RedeemMode selects how a sell settles.
type RedeemMode string

const (
	RedeemInstant RedeemMode = "instant"
	RedeemTPlus1  RedeemMode = "t_plus_1"
)

// placeholderAddress marks a brand whose coin type has not been deployed yet.
const placeholderAddress = "0000000000000000000000000000000000000000000000000000000000000000"

// Brand is a mintable/redeemable asset listed on the marketplace.
type Brand struct {
	Key                  string       `json:"key"`
	DisplayName          string       `json:"displayName"`
	CoinType             string       `json:"coinType"`
	Decimals             int32        `json:"decimals"`
	SupportedRedeemModes []RedeemMode `json:"supportedRedeemModes"`
	Tags                 []string     `json:"tags,omitempty"`
	Notes                string       `json:"notes,omitempty"`

	// Package and Module locate the Move entry points for mint/redeem/claim.
	Package string `json:"package,omitempty"`
	Module  string `json:"module,omitempty"`
	// ClaimFunction is empty when the brand accrues no rewards.
	ClaimFunction string `json:"claimFunction,omitempty"`
}

var defaultBrands = []Brand{
	{
		Key:                  "virtualGold",
		DisplayName:          "Virtual Gold",
		CoinType:             "0x" + placeholderAddress + "::virtual_gold::VirtualGold",
		Decimals:             9,
		SupportedRedeemModes: []RedeemMode{RedeemInstant},
		Tags:                 []string{"virtual", "nft-backed"},
		Notes:                "Virtual gold token backed by NFT assets",
		Module:               "virtual_gold",
		ClaimFunction:        "claim",
	},
	{
		Key:                  "virtualSilver",
		DisplayName:          "Virtual Silver",
		CoinType:             "0x" + placeholderAddress + "::virtual_silver::VirtualSilver",
		Decimals:             9,
		SupportedRedeemModes: []RedeemMode{RedeemInstant},
		Tags:                 []string{"virtual", "nft-backed"},
		Notes:                "Virtual silver token backed by NFT assets",
		Module:               "virtual_silver",
		ClaimFunction:        "claim",
	},
	{
		Key:                  "gamePoints",
		DisplayName:          "Game Points",
		CoinType:             "0x" + placeholderAddress + "::game_points::GamePoints",
		Decimals:             9,
		SupportedRedeemModes: []RedeemMode{RedeemInstant},
		Tags:                 []string{"gaming", "points"},
		Notes:                "Game points usable in partner games",
		Module:               "game_points",
	},
}

// DefaultBrands returns a copy of the built-in brand table.
func DefaultBrands() []Brand {
	out := make([]Brand, len(defaultBrands))
	copy(out, defaultBrands)
	return out
}

// IsConfigured reports whether the brand points at a deployed coin type.
func (b Brand) IsConfigured() bool {
	return !strings.Contains(b.CoinType, placeholderAddress)
}

// SupportsMode reports whether the brand accepts redemptions in mode.
func (b Brand) SupportsMode(mode RedeemMode) bool {
	return slices.Contains(b.SupportedRedeemModes, mode)
}

// PackageID returns the Move package id, defaulting to the coin type's address.
func (b Brand) PackageID() string {
	if b.Package != "" {
		return b.Package
	}
	addr, _, _ := strings.Cut(b.CoinType, "::")
	return addr
}

// LookupBrand finds key in brands.
func LookupBrand(brands []Brand, key string) (Brand, error) {
	for _, b := range brands {
		if b.Key == key {
			return b, nil
		}
	}
	return Brand{}, fmt.Errorf("unknown brand %q", key)
}

// ParseRedeemMode validates a wire value.
func ParseRedeemMode(s string) (RedeemMode, error) {
	switch RedeemMode(s) {
	case RedeemInstant, RedeemTPlus1:
		return RedeemMode(s), nil
	case "":
		return RedeemInstant, nil
	default:
		return "", fmt.Errorf("unknown redeem mode %q", s)
	}
}
