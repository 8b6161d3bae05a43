package nuzlocke

import (
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint 原始 (index, state) 的摘要，只用于变化检测
type Fingerprint string

// ComputeFingerprint 对两个原始字符串做长度分帧后计算 xxhash64
// 分帧保证 ("ab","c") 与 ("a","bc") 得到不同的结果
func ComputeFingerprint(rawIndex, rawState string) Fingerprint {
	d := xxhash.New()
	var frame [8]byte

	binary.BigEndian.PutUint64(frame[:], uint64(len(rawIndex)))
	_, _ = d.Write(frame[:])
	_, _ = d.WriteString(rawIndex)

	binary.BigEndian.PutUint64(frame[:], uint64(len(rawState)))
	_, _ = d.Write(frame[:])
	_, _ = d.WriteString(rawState)

	return Fingerprint(strconv.FormatUint(d.Sum64(), 16))
}

// HasChanged 指纹是否不同
func HasChanged(prev, cur Fingerprint) bool {
	return prev != cur
}

// Detector 记录最近一次观察到的指纹（仅进程内）
type Detector struct {
	mu   sync.Mutex
	last Fingerprint
	seen bool
}

// NewDetector 创建 Detector；第一次观察总是视为变化
func NewDetector() *Detector {
	return &Detector{}
}

// Observe 计算指纹并与上一次比较
func (d *Detector) Observe(rawIndex, rawState string) (Fingerprint, bool) {
	fp := ComputeFingerprint(rawIndex, rawState)

	d.mu.Lock()
	defer d.mu.Unlock()

	changed := !d.seen || HasChanged(d.last, fp)
	d.last = fp
	d.seen = true
	return fp, changed
}

// Last 最近一次的指纹；尚未观察时 ok 为 false
func (d *Detector) Last() (Fingerprint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.seen
}

// Reset 回到未知状态，下一次观察视为变化
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = ""
	d.seen = false
}
