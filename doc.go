// Package chat provides a token-authenticated realtime chat relay: JWT
// issuance and validation, account registration and login over a JSON API,
// and a websocket fan-out layer with per-connection identity binding.
//
// Identity binding:
//   - Every websocket connection starts unbound. The first JOIN event binds
//     a principal exactly once; chat and leave events arriving earlier are
//     rejected without closing the connection, and a second join keeps the
//     original binding.
//   - The sender stamped on every relayed event comes from the connection's
//     bound principal. Sender fields declared in later payloads are ignored.
//
// Request authentication:
//   - RouteAuthenticator.WithAuthentication runs on every request and never
//     rejects: a missing or invalid bearer token leaves the request anonymous
//     (invalid tokens are logged). ProtectedRoute turns a missing identity
//     into a 401 on endpoints that require one.
//
// Fan-out:
//   - The Relay publishes accepted events to a Broker topic. broker/memory
//     serves single-node deployments and tests; broker/redis shares the
//     topic across nodes over Redis pub/sub.
package chat
