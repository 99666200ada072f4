// Package channels contains the delivery adapters that connect the
// orchestrator to the outside world: console, WebSocket, MQTT, and
// email. Each adapter implements agent.Channel; inbound-capable ones
// also accept messages and hand them to an InboundFunc.
package channels

import "context"

// InboundFunc receives one inbound message from a channel. The wiring
// in cmd/reeve routes it through the command router and then the
// orchestrator; channels never see either directly.
type InboundFunc func(ctx context.Context, sessionID, text string)
