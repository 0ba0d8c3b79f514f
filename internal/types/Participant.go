package types

import (
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// ParseParticipant validates a bech32 account address against the configured prefix.
func ParseParticipant(address string) (Participant, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrInvalidParticipant.Wrap("empty address")
	}
	acc, err := sdk.AccAddressFromBech32(address)
	if err != nil {
		return "", ErrInvalidParticipant.Wrapf("%s: %v", address, err)
	}
	return Participant(acc.String()), nil
}

// ParticipantFromBytes derives the bech32 participant for raw account bytes.
func ParticipantFromBytes(bz []byte) Participant {
	return Participant(sdk.AccAddress(bz).String())
}
