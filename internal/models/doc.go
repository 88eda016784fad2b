// Package models defines the data model for the recommendation web service.
//
// Types here are the stable internal schema: provider payloads are reshaped
// into these records at the service boundary and everything downstream
// (aggregation, suggestion engine, HTTP responses) works with them.
package models
