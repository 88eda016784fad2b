// Package services contains clients for the external collaborators: the
// Spotify Web API (through a session-scoped token manager) and the OpenAI
// chat-completions API used to pick candidate tracks.
package services
