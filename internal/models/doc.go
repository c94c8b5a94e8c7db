// Package models provides functionality for listing chat models
// available with the configured provider API key. It helps users
// discover which models they can pass to --model.
package models
