// Package models defines the wire types shared with the remote command
// center authority. Field names follow the authority's camelCase JSON.
package models

import "time"

// CommandDefinition is a remotely executable command as known to the
// authority. At most one live definition exists per ID.
type CommandDefinition struct {
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Executable     string    `json:"executable"`
	Description    string    `json:"description,omitempty"`
	Args           []string  `json:"args"`
	Tags           []string  `json:"tags"`
	AllowArguments bool      `json:"allowArguments"`
}

// CommandMutation is the payload for creating or updating a command.
// An empty ID requests creation; a set ID targets the existing command.
type CommandMutation struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name"`
	Executable     string   `json:"executable"`
	Description    string   `json:"description,omitempty"`
	Args           []string `json:"args"`
	Tags           []string `json:"tags"`
	AllowArguments bool     `json:"allowArguments"`
}
