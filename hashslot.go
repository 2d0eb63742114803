package redisbind

import (
	"hash/crc32"
)

// GetHashSlotRange splits maxSlot into size contiguous ranges. The returned
// slice holds the exclusive upper bound of each range; the last range always
// ends at maxSlot so no slot is left unassigned.
func GetHashSlotRange(size int, maxSlot uint32) []uint32 {
	average := maxSlot / uint32(size)
	maxValuePerShard := make([]uint32, size)
	lastIndex := size - 1
	for i := range maxValuePerShard {
		if i == lastIndex {
			maxValuePerShard[i] = maxSlot
		} else {
			maxValuePerShard[i] = average * uint32(i+1)
		}
	}
	return maxValuePerShard
}

// GetIndexByHash maps shardKey onto one of the ranges produced by
// GetHashSlotRange and returns the matching index, or -1 when the ranges do
// not cover the computed slot.
func GetIndexByHash(hashSlotRange []uint32, shardKey []byte, maxSlot uint32) int {
	slot := crc32.ChecksumIEEE(shardKey) % maxSlot
	for i, v := range hashSlotRange {
		if slot < v {
			return i
		}
	}
	return -1
}
