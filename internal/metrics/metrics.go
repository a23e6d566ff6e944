package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 汇总服务暴露的 Prometheus 指标。
// 所有方法在 nil 接收者上都是空操作，测试中可以直接传 nil。
type Metrics struct {
	registry       *prometheus.Registry
	activeSockets  prometheus.Gauge
	hubRooms       prometheus.Gauge
	roomOperations *prometheus.CounterVec
	broadcasts     *prometheus.CounterVec
	sweptRooms     prometheus.Counter
}

// New 创建指标集合并注册到独立的 Registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		activeSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "study_room",
			Name:      "active_sockets",
			Help:      "Number of open realtime connections on this node.",
		}),
		hubRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "study_room",
			Name:      "hub_rooms",
			Help:      "Number of rooms with at least one local connection.",
		}),
		roomOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "study_room",
			Name:      "room_operations_total",
			Help:      "Room lifecycle operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "study_room",
			Name:      "broadcast_events_total",
			Help:      "Events published to room broadcast groups by type.",
		}, []string{"type"}),
		sweptRooms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "study_room",
			Name:      "swept_rooms_total",
			Help:      "Empty rooms removed by the periodic sweep.",
		}),
	}
	reg.MustRegister(
		m.activeSockets, m.hubRooms, m.roomOperations, m.broadcasts, m.sweptRooms,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler 返回 /metrics 的 Gin 处理函数
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registry 返回底层 Registry (测试用)
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SocketOpened() {
	if m != nil {
		m.activeSockets.Inc()
	}
}

func (m *Metrics) SocketClosed() {
	if m != nil {
		m.activeSockets.Dec()
	}
}

func (m *Metrics) SetHubRooms(n int) {
	if m != nil {
		m.hubRooms.Set(float64(n))
	}
}

// RoomOperation 记录一次生命周期操作的结果，err 为 nil 记为 ok
func (m *Metrics) RoomOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.roomOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) EventPublished(eventType string) {
	if m != nil {
		m.broadcasts.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) RoomsSwept(n int) {
	if m != nil {
		m.sweptRooms.Add(float64(n))
	}
}
