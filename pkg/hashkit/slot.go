package hashkit

import "bytes"

// SlotCount is the number of hash slots of a redis cluster.
const SlotCount = 16384

const musk = SlotCount - 1

// Slot returns the cluster slot of key. When key contains a non-empty
// {hashtag}, only the tag is hashed.
func Slot(key []byte) int {
	return int(Crc16(hashTag(key)) & musk)
}

// SlotString is Slot for string keys.
func SlotString(key string) int {
	return Slot([]byte(key))
}

func hashTag(key []byte) []byte {
	start := bytes.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := bytes.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}
