// Package model defines the domain types shared by the REST client, the
// market-data fetcher and the stream client.
//
// Prices are decimal values as quoted by the broker; volumes are lot counts.
package model
