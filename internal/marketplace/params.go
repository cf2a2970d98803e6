package marketplace

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ParamActionType is the params key under which routers pass the ABI-encoded
// uint8 action type.
var ParamActionType = crypto.Keccak256Hash([]byte("adcampaign.param.actionType"))

var uint8Args = abi.Arguments{{Type: mustType("uint8")}}

var uint256Args = abi.Arguments{{Type: mustType("uint256")}}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// DecodeActionType finds and decodes the action type entry in params.
func DecodeActionType(params []KeyValue) (ActionType, error) {
	for _, kv := range params {
		if kv.Key != ParamActionType {
			continue
		}
		vals, err := uint8Args.Unpack(kv.Value)
		if err != nil {
			return ActionNone, fmt.Errorf("decode action type: %v: %w", err, ErrInvalidParameter)
		}
		v, ok := vals[0].(uint8)
		if !ok {
			return ActionNone, fmt.Errorf("decode action type: unexpected %T: %w", vals[0], ErrInvalidParameter)
		}
		t := ActionType(v)
		if !t.Valid() {
			return ActionNone, fmt.Errorf("action type %s is not rewardable: %w", t, ErrInvalidParameter)
		}
		return t, nil
	}
	return ActionNone, fmt.Errorf("params carry no action type: %w", ErrInvalidParameter)
}

// EncodeActionTypeParam builds the params entry a router sends for t.
func EncodeActionTypeParam(t ActionType) KeyValue {
	data, err := uint8Args.Pack(uint8(t))
	if err != nil {
		panic(err)
	}
	return KeyValue{Key: ParamActionType, Value: data}
}

// encodeCampaignID is the return data of Execute and Configure.
func encodeCampaignID(id uint64) []byte {
	data, err := uint256Args.Pack(new(big.Int).SetUint64(id))
	if err != nil {
		panic(err)
	}
	return data
}

// ContentHash is the keccak256 digest stored alongside a content URI.
func ContentHash(body []byte) common.Hash {
	return crypto.Keccak256Hash(body)
}

// DecodeCampaignID reads the campaign id returned by Execute and Configure.
func DecodeCampaignID(data []byte) (uint64, error) {
	vals, err := uint256Args.Unpack(data)
	if err != nil {
		return 0, fmt.Errorf("decode campaign id: %w", err)
	}
	v, ok := vals[0].(*big.Int)
	if !ok || !v.IsUint64() {
		return 0, fmt.Errorf("decode campaign id: unexpected value %v", vals[0])
	}
	return v.Uint64(), nil
}
