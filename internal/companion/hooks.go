package companion

// Observer capability interfaces. An application implements one, both, or
// neither; the manager checks capability at registration instead of probing
// at dispatch time. Returned errors are contained by the manager (logged with
// application identity and device context) and never abort dispatch to the
// remaining applications.

// ConnectObserver receives a notification after a companion device connects.
type ConnectObserver interface {
	OnCompanionConnect(conn Connection) error
}

// DisconnectObserver receives a notification after a companion device
// disconnects.
type DisconnectObserver interface {
	OnCompanionDisconnect(conn Connection) error
}

// Named lets an application report a stable identity for dispatch logging.
// Optional; unnamed applications are identified by their Go type.
type Named interface {
	Name() string
}
