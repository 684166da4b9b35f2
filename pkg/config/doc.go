// Package config loads environment-tagged configuration structs, with an
// optional .env file for local development and a per-type cache so each
// configuration is parsed exactly once per process.
package config
