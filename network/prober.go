package network

import (
	"context"
	"net"
	"time"

	"golang.org/x/sync/singleflight"
)

// Prober 按需探测当前网络状态
type Prober interface {
	Probe(ctx context.Context) (State, error)
}

// ProberFunc 函数式 Prober
type ProberFunc func(ctx context.Context) (State, error)

// Probe 实现 Prober 接口
func (f ProberFunc) Probe(ctx context.Context) (State, error) {
	return f(ctx)
}

// DialProber 通过建立外部连接判断可达性
// 依次尝试多个地址，任一成功即视为可达
type DialProber struct {
	addrs   []string
	timeout time.Duration
	group   singleflight.Group
}

// NewDialProber 创建拨测 Prober
// 不指定地址时使用公共 DNS 端口
func NewDialProber(addrs []string, timeout time.Duration) *DialProber {
	if len(addrs) == 0 {
		addrs = []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &DialProber{
		addrs:   addrs,
		timeout: timeout,
	}
}

// Probe 执行探测
// 并发调用合并为一次实际拨测
func (p *DialProber) Probe(ctx context.Context) (State, error) {
	v, err, _ := p.group.Do("probe", func() (any, error) {
		return p.probe(ctx), nil
	})
	if err != nil {
		return State{}, err
	}
	return v.(State), nil
}

func (p *DialProber) probe(ctx context.Context) State {
	dialer := net.Dialer{Timeout: p.timeout}

	for _, addr := range p.addrs {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}
		_ = conn.Close()

		return State{
			Connected:     true,
			Reachable:     Bool(true),
			TransportType: "unknown",
			At:            time.Now(),
		}
	}

	return State{
		Connected:     false,
		Reachable:     Bool(false),
		TransportType: "none",
		At:            time.Now(),
	}
}
