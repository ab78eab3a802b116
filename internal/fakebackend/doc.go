// Package fakebackend serves the DAO webserver's configuration API from an
// in-memory fixture.
//
// It backs the client tests and the --demo mode of dao-cfg. Only the REST
// contract is reproduced: entity listing and search, the settings documents,
// secrets.json and the schema. Nothing talks to Home Assistant.
//
// Usage:
//
//	fixture, _ := fakebackend.LoadDemo()
//	srv := fakebackend.New(fixture)
//	url, stop, err := srv.Start("127.0.0.1:0")
//	defer stop(context.Background())
package fakebackend
