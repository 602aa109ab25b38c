package mqtt

import (
	"strings"
	"time"
)

const (
	controlPrefix = "kiosk/control/"
	statusPrefix  = "kiosk/status/"
	broadcast     = "broadcast"
)

// CommandKind identifies a remote control request.
type CommandKind int

const (
	CommandReloadSettings CommandKind = iota + 1
	CommandRefreshCatalog
	CommandRefreshSubscription
	CommandReset
)

func (k CommandKind) String() string {
	switch k {
	case CommandReloadSettings:
		return "settings/reload"
	case CommandRefreshCatalog:
		return "catalog/refresh"
	case CommandRefreshSubscription:
		return "subscription/refresh"
	case CommandReset:
		return "session/reset"
	default:
		return "unknown"
	}
}

var commandPaths = map[string]CommandKind{
	CommandReloadSettings.String():      CommandReloadSettings,
	CommandRefreshCatalog.String():      CommandRefreshCatalog,
	CommandRefreshSubscription.String(): CommandRefreshSubscription,
	CommandReset.String():               CommandReset,
}

// Command is a control message addressed to this kiosk or to all kiosks.
type Command struct {
	Kind      CommandKind
	Broadcast bool
	Payload   []byte
}

// ControlTopics returns the topics a kiosk subscribes to.
func ControlTopics(clientID string) []string {
	return []string{
		controlPrefix + broadcast + "/#",
		controlPrefix + clientID + "/#",
	}
}

// ParseCommand recognizes control topics:
//
//	kiosk/control/broadcast/<path>
//	kiosk/control/<clientID>/<path>
//
// where path is one of settings/reload, catalog/refresh,
// subscription/refresh or session/reset.
func ParseCommand(clientID, topic string, payload []byte) (Command, bool) {
	rest, ok := strings.CutPrefix(topic, controlPrefix)
	if !ok {
		return Command{}, false
	}
	target, path, ok := strings.Cut(rest, "/")
	if !ok {
		return Command{}, false
	}
	if target != broadcast && target != clientID {
		return Command{}, false
	}
	kind, ok := commandPaths[path]
	if !ok {
		return Command{}, false
	}
	return Command{Kind: kind, Broadcast: target == broadcast, Payload: payload}, true
}

// DonationTopic is where completed donations are announced.
func DonationTopic(clientID string) string {
	return statusPrefix + clientID + "/donation"
}

// StateTopic is where flow state changes are announced.
func StateTopic(clientID string) string {
	return statusPrefix + clientID + "/state"
}

// PingTopic carries the periodic heartbeat.
func PingTopic(clientID string) string {
	return statusPrefix + clientID + "/ping"
}

// DonationMessage is published for each completed donation.
type DonationMessage struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	Amount         string    `json:"amount"`
	IsCustomAmount bool      `json:"is_custom_amount"`
	CatalogItemID  string    `json:"catalog_item_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Ping is the heartbeat payload.
type Ping struct {
	State        string    `json:"state"`
	Screen       string    `json:"screen"`
	Authorized   bool      `json:"authorized"`
	Subscription string    `json:"subscription,omitempty"`
	Uptime       int64     `json:"uptime_seconds"`
	At           time.Time `json:"at"`
}
