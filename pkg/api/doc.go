// Package api implements the HTTP server (Gin-based) of the inquiry
// pipeline. It owns middleware, health and metrics endpoints and graceful
// shutdown; the routes themselves come from registered controllers.
package api
