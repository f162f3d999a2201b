package network

import "time"

// State 网络状态，进程内单一当前值
type State struct {
	// Connected 是否有无线电层连接
	Connected bool `json:"connected"`

	// Reachable 是否有可用的网络路径；首次探测前未知
	Reachable *bool `json:"reachable,omitempty"`

	// TransportType 传输类型（wifi/cellular/ethernet/unknown）
	TransportType string `json:"transport_type"`

	// Costly 是否按流量计费；未知时为 nil
	Costly *bool `json:"costly,omitempty"`

	// Revision 单调递增的更新序号，保证更新全序
	Revision uint64 `json:"revision"`

	// At 本次更新时间
	At time.Time `json:"at"`
}

// IsReachable 是否可达
// Reachable 未知时退化为 Connected
func (s State) IsReachable() bool {
	if s.Reachable != nil {
		return *s.Reachable
	}
	return s.Connected
}

// Change 可达性翻转事件
// 仅 reachable↔unreachable 的翻转会被发布
type Change struct {
	Previous State `json:"previous"`
	Current  State `json:"current"`
}

// BecameReachable 本次翻转是否为 不可达→可达
func (c Change) BecameReachable() bool {
	return !c.Previous.IsReachable() && c.Current.IsReachable()
}

// Bool 构造 *bool
func Bool(v bool) *bool {
	return &v
}
