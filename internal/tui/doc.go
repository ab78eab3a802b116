// Package tui implements the terminal editor for the Day Ahead Optimizer
// settings.
//
// The editor is a Bubble Tea program following the Elm architecture: every
// model is a value, Update returns the next model and a command, and all I/O
// happens in commands. Two screens exist:
//   - Connect: scans the network for DAO webservers (mDNS) or takes a typed
//     address
//   - Form: lists every leaf of options.json grouped by section and edits
//     the selected field inline
//
// # Reference values
//
// A field the schema marks with haEntity or haSecret stores either a literal
// or a reference. FieldControl derives which editor to show from the stored
// value on every render: "sensor.x" opens the entity autocomplete,
// "!secret key" opens the secret picker, anything else opens the literal
// editor for the field's type. ctrl+t switches a flexible field between its
// literal and reference forms.
//
// # Autocomplete
//
// AutocompleteModel debounces typing with sequence-tagged ticks. Only the
// tick carrying the newest sequence number starts a search, and a result
// whose sequence number is stale is dropped, so an older slow response can
// never overwrite a newer one.
//
// # Usage Example
//
//	app := tui.NewAppModel(tui.AppOptions{
//	    Connect: func(u string) (tui.Backend, error) {
//	        return backend.NewClientWithURL(u), nil
//	    },
//	    StartURL: "http://homeassistant.local:5000",
//	})
//	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
//	if _, err := program.Run(); err != nil {
//	    log.Fatal(err)
//	}
package tui
