// Package stream is a WebSocket client for Alor real-time subscriptions.
//
// Every subscription request carries the current access token and a GUID
// that tags the data messages belonging to it. The Client takes the token
// from a TokenSource on each request, so a renewed session is picked up by
// the next Subscribe without reconnecting.
//
// Endpoints:
//   - Production: wss://api.alor.ru/ws
//   - Dev: wss://apidev.alor.ru/ws
package stream
