// Package core defines the shared data types and error taxonomy used across
// the MEP arbitrage agent.
//
// Conventions:
//   - Prices and quantities are float64: the venue quotes decimal sub-penny
//     prices directly over the wire, so there is no fixed-point convention to
//     mirror here.
//   - Timestamps are time.Time. The venue's market-data messages carry no
//     exchange timestamp, so all timestamps in this package are local
//     receive-time stamps applied by the Wire Client.
package core
