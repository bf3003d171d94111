// Package schema defines the wire shapes and stream topology shared by
// every service in the coordinator.
package schema

// Stream names (logical topics). Each has a companion DLQ stream named
// "<Stream>.dlq".
const (
	StreamCommands      = "orchestrator.commands"
	StreamSignals       = "analysis.signals"
	StreamRiskRequests  = "risk.requests"
	StreamRiskResponses = "risk.responses"
	StreamExecOrders    = "exec.orders"
	StreamExecStatus    = "exec.status"
	StreamNotifyEvents  = "notify.events"
)

// Consumer group names, one per reader role.
const (
	GroupAnalyst     = "analyst"
	GroupOrchestrator = "orchestrator"
	GroupRisk        = "risk"
	GroupExec        = "exec"
	GroupNotify      = "notify"
)

// DLQStream returns the dead-letter stream name for a source stream.
func DLQStream(stream string) string {
	return stream + ".dlq"
}

// Redis key conventions used outside of stream entries.
const (
	KeyPnLPrefix       = "pnl:"               // + YYYY-MM-DD
	KeyOrderPrefix     = "exec:orders:"        // + orderId
	KeyRiskParams      = "optimizer:active_params"
	KeyNotifyAckPrefix = "notify:ack:"         // + id
	KeyFailurePrefix   = "stream:"             // stream:<S>:group:<G>:failures
	KeyIdemPrefix      = "idem:"               // idem:<stream>:<group>:<k>
)

// FailureCounterKey builds the per-(stream,group) failure-count hash key.
func FailureCounterKey(stream, group string) string {
	return KeyFailurePrefix + stream + ":group:" + group + ":failures"
}

// IdempotencyKey builds the idempotency claim key, checked before a handler
// runs and set after it succeeds.
func IdempotencyKey(stream, group, k string) string {
	return KeyIdemPrefix + stream + ":" + group + ":" + k
}
