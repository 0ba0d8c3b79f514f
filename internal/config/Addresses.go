package config

import (
	"errors"
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog/log"
)

const (
	AccountAddressPrefix = "elys"
)

var (
	sdkConfigOnce  sync.Once
	sdkConfigError error
)

// ConfigureAddressPrefixes sets the bech32 prefixes participants are validated against.
// It seals the SDK config, so it runs once per process.
func ConfigureAddressPrefixes() error {
	sdkConfigOnce.Do(func() {
		sdkConfig := sdk.GetConfig()
		if sdkConfig == nil {
			sdkConfigError = errors.New("failed to get SDK config")
			return
		}

		sdkConfig.SetBech32PrefixForAccount(AccountAddressPrefix, AccountAddressPrefix+"pub")
		sdkConfig.SetBech32PrefixForValidator(AccountAddressPrefix+"valoper", AccountAddressPrefix+"valoperpub")
		sdkConfig.SetBech32PrefixForConsensusNode(AccountAddressPrefix+"valcons", AccountAddressPrefix+"valconspub")
		sdkConfig.Seal()

		log.Debug().Str("prefix", AccountAddressPrefix).Msg("Bech32 prefixes configured")
	})

	return sdkConfigError
}
