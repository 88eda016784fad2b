// Package tasks implements the orchestration engines behind the HTTP surface.
//
// [StatsEngine] fans out the provider fetches for a listening-profile
// snapshot and normalizes the results into a [models.StatsBundle].
// [SuggestEngine] runs the completion-then-search suggestion flow and filters
// out tracks the user has already been offered. [PlaylistEngine] writes
// suggested tracks into a playlist, creating one on first use.
//
// Engines are stateless apart from injected collaborators; per-user state
// (tokens, suggestion history, cached snapshots) lives in the session store,
// the suggestion repository, and [StatsCache].
package tasks
