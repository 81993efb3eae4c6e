package state

import "encoding/hex"

// Key layout for the mint module. Every record lives under a readable prefix
// followed by hex-encoded identifiers, so operators can inspect the store
// with standard LevelDB tooling.
const (
	inviteKeyPrefix           = "mint/invite/"
	collectionKeyPrefix       = "mint/collection/"
	burnConfigKeyPrefix       = "mint/burnconfig/"
	mintedKeyPrefix           = "mint/minted/"
	ownerBalanceKeyPrefix     = "mint/balance/owner/"
	affiliateBalanceKeyPrefix = "mint/balance/affiliate/"
)

func inviteKey(collection [20]byte, key [32]byte) []byte {
	return []byte(inviteKeyPrefix + hex.EncodeToString(collection[:]) + "/" + hex.EncodeToString(key[:]))
}

func collectionKey(collection [20]byte) []byte {
	return []byte(collectionKeyPrefix + hex.EncodeToString(collection[:]))
}

func burnConfigKey(collection [20]byte) []byte {
	return []byte(burnConfigKeyPrefix + hex.EncodeToString(collection[:]))
}

func mintedKey(collection [20]byte, wallet [20]byte, key [32]byte) []byte {
	return []byte(mintedKeyPrefix + hex.EncodeToString(collection[:]) + "/" + hex.EncodeToString(wallet[:]) + "/" + hex.EncodeToString(key[:]))
}

func ownerBalanceKey(collection [20]byte, asset [20]byte) []byte {
	return []byte(ownerBalanceKeyPrefix + hex.EncodeToString(collection[:]) + "/" + hex.EncodeToString(asset[:]))
}

func affiliateBalanceKey(affiliate [20]byte, asset [20]byte) []byte {
	return []byte(affiliateBalanceKeyPrefix + hex.EncodeToString(affiliate[:]) + "/" + hex.EncodeToString(asset[:]))
}
