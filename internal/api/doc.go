// Package api provides the Alor REST API client.
//
// REST endpoints:
//   - Production: https://api.alor.ru
//   - Dev: https://apidev.alor.ru
//
// Every request carries the bearer header supplied by a HeaderSource
// (normally an *auth.Session) plus any per-call extra headers. Order
// mutations carry an X-ALOR-REQID idempotency key.
package api
