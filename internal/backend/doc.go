// Package backend is the REST client for the Day Ahead Optimizer webserver.
//
// The client covers the configuration API: the Home Assistant entity index
// (full list and search), secret keys, settings documents and the settings
// schema. It owns a time-based cache of the full entity list, guarded by a
// mutex so it can be read from concurrent tea.Cmd goroutines.
//
// Every failure is a *BackendError carrying an ErrorType. Entity reads wrap
// their cause in ErrTypeIndexUnavailable so callers can degrade to "no
// suggestions" without inspecting transport details:
//
//	entities, err := client.Search(ctx, "sensor", "temp")
//	if backend.IsIndexUnavailable(err) {
//	    // show the inline error, keep the field editable
//	}
//
// Requests are never retried.
package backend
