package session

import "github.com/bits-and-blooms/bloom/v3"

// dedup 记录已投递的聊天消息 ID，取舍见 WithDedupCapacity
type dedup struct {
	filter   *bloom.BloomFilter
	capacity uint
	added    uint
}

func newDedup(capacity uint) *dedup {
	if capacity == 0 {
		return nil
	}
	return &dedup{
		filter:   bloom.NewWithEstimates(capacity, 0.0001),
		capacity: capacity,
	}
}

// seen 返回 id 是否已记录过，未记录则记录
func (d *dedup) seen(id string) bool {
	if d == nil || id == "" {
		return false
	}
	// 超出容量后误判率迅速上升，整体清空重新计数
	if d.added >= d.capacity {
		d.filter.ClearAll()
		d.added = 0
	}
	if d.filter.TestOrAddString(id) {
		return true
	}
	d.added++
	return false
}
