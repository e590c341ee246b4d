// Package events provides fan-out of task state-change events to
// interested consumers. Delivery is decoupled from persistence: state
// is durably written whether or not anyone is subscribed, and events
// for one task are delivered in the order their store updates were
// committed.
package events
