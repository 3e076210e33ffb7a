// Package apiresponses provides standardized HTTP API response helpers
// shared by the inquiry and admin controllers.
package apiresponses
