package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/config"
	"github.com/dayahead/daocfg/internal/discovery"
	"github.com/dayahead/daocfg/internal/fakebackend"
	"github.com/dayahead/daocfg/internal/urls"
)

func newDemoClient(t *testing.T) (*fakebackend.Server, *backend.Client) {
	t.Helper()
	fixture, err := fakebackend.LoadDemo()
	require.NoError(t, err)

	srv := fakebackend.New(fixture)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, backend.NewClientWithURL(ts.URL)
}

func TestIsEditorCommand(t *testing.T) {
	assert.True(t, isEditorCommand(rootCmd))
	assert.True(t, isEditorCommand(editCmd))
	assert.False(t, isEditorCommand(scanCmd))
	assert.False(t, isEditorCommand(backendsListCmd))
	assert.NotNil(t, rootCmd.PersistentPreRunE, "logging is set up before every command")
}

func TestDocumentArg(t *testing.T) {
	assert.NoError(t, documentArg("options"))
	assert.NoError(t, documentArg("secrets"))

	err := documentArg("../etc/passwd")
	require.Error(t, err)
	assert.True(t, backend.IsMalformedInput(err))
}

func TestTroubleshooting(t *testing.T) {
	refused := backend.ClassifyNetworkError(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED})
	tips := troubleshooting(refused)

	require.NotEmpty(t, tips)
	assert.Equal(t, "Documentation: "+urls.Documentation, tips[len(tips)-1])
	for _, tip := range tips {
		assert.NotEqual(t, "Troubleshooting:", tip)
		assert.False(t, strings.HasPrefix(tip, "•"), "bullet kept in %q", tip)
	}

	plain := troubleshooting(errors.New("boom"))
	assert.Equal(t, []string{"An unexpected error occurred. Please try again.", "Documentation: " + urls.Documentation}, plain)
}

func TestDownloadDocument(t *testing.T) {
	srv, client := newDemoClient(t)
	path := filepath.Join(t.TempDir(), "backup", "options.json")

	n, err := downloadDocument(context.Background(), client, "options", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.Contains(t, string(data), "\n  \"", "two-space indent")

	stored, ok := srv.Document("options")
	require.True(t, ok)
	same, err := sameDocument(stored, data)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestDownloadDocument_Unreachable(t *testing.T) {
	_, client := newDemoClient(t)
	client.BaseURL = "http://127.0.0.1:1"

	_, err := downloadDocument(context.Background(), client, "options", filepath.Join(t.TempDir(), "o.json"))
	require.Error(t, err)
	assert.True(t, backend.IsNetworkError(err))
}

func TestUploadDocument(t *testing.T) {
	srv, client := newDemoClient(t)

	doc := json.RawMessage(`{"strategy": {"optimize": "minimize consumption"}, "interval": "1hour"}`)
	require.NoError(t, uploadDocument(context.Background(), client, "options", doc, true))

	stored, ok := srv.Document("options")
	require.True(t, ok)
	same, err := sameDocument(doc, stored)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestUploadDocument_FromFile(t *testing.T) {
	_, client := newDemoClient(t)
	dir := t.TempDir()

	txt := filepath.Join(dir, "options.txt")
	require.NoError(t, os.WriteFile(txt, []byte(`{}`), 0o600))
	_, err := backend.LoadDocumentFile(txt)
	assert.True(t, backend.IsMalformedInput(err))

	good := filepath.Join(dir, "options.json")
	require.NoError(t, os.WriteFile(good, []byte("{\n  \"a\": 1\n}\n"), 0o600))
	doc, err := backend.LoadDocumentFile(good)
	require.NoError(t, err)
	assert.NoError(t, uploadDocument(context.Background(), client, "options", doc, false))
}

func TestSameDocument(t *testing.T) {
	same, err := sameDocument(json.RawMessage(`{"a":1,"b":[true,null]}`), json.RawMessage("{\n  \"a\": 1,\n  \"b\": [ true, null ]\n}"))
	require.NoError(t, err)
	assert.True(t, same, "formatting is ignored")

	same, err = sameDocument(json.RawMessage(`{"a":1,"b":2}`), json.RawMessage(`{"b":2,"a":1}`))
	require.NoError(t, err)
	assert.False(t, same, "key order is significant")

	_, err = sameDocument(json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":`))
	assert.True(t, backend.IsParseError(err))
}

func TestLookupEntities(t *testing.T) {
	srv, client := newDemoClient(t)
	ctx := context.Background()

	all, err := lookupEntities(ctx, client, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 11)

	helpers, err := lookupEntities(ctx, client, "input_number", "")
	require.NoError(t, err)
	assert.Len(t, helpers, 3)

	found, err := lookupEntities(ctx, client, "sensor", "temp")
	require.NoError(t, err)
	domain, pattern := srv.LastSearch()
	assert.Equal(t, "sensor", domain)
	assert.Equal(t, "temp", pattern)

	var ids []string
	for _, e := range found {
		ids = append(ids, e.ID)
	}
	assert.Contains(t, ids, "sensor.temp_1")
}

func TestPrintEntities(t *testing.T) {
	entities := []backend.Entity{
		{ID: "sensor.temp_1", DisplayName: "Living room temperature", State: "21.5", Unit: "°C"},
		{ID: "switch.boiler", State: "unavailable"},
	}

	var plain bytes.Buffer
	printEntities(&plain, entities, true)
	assert.Equal(t, "sensor.temp_1\nswitch.boiler\n", plain.String())

	var table bytes.Buffer
	printEntities(&table, entities, false)
	assert.Contains(t, table.String(), "Living room temperature")
	assert.Contains(t, table.String(), "21.5 °C")
	assert.Contains(t, table.String(), "2 entities")

	var empty bytes.Buffer
	printEntities(&empty, nil, false)
	assert.Contains(t, empty.String(), "No matching entities.")
}

func TestAddBackend(t *testing.T) {
	reg := config.NewRegistry()

	url, err := addBackend(reg, "home", "homeassistant.local")
	require.NoError(t, err)
	assert.Equal(t, "http://homeassistant.local:5000", url)
	assert.Equal(t, "manual", reg.GetBackend("home").Source)
	assert.Equal(t, "home", reg.DefaultBackend)

	_, err = addBackend(reg, "bad", "ftp://nas")
	assert.True(t, backend.IsMalformedInput(err))
	assert.Nil(t, reg.GetBackend("bad"))

	_, err = addBackend(reg, "", "dao.local")
	assert.Error(t, err)
}

func TestBackendRows(t *testing.T) {
	reg := config.NewRegistry()
	reg.EnsureBackend("home", "http://homeassistant.local:5000", "mdns")
	reg.EnsureBackend("cabin", "http://10.0.0.5:5000", "manual")
	reg.TouchBackend("home")

	rows := backendRows(reg)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"", "cabin", "http://10.0.0.5:5000", "manual", "never"}, rows[0])
	assert.Equal(t, "*", rows[1][0])
	assert.Equal(t, "home", rows[1][1])
	assert.NotEqual(t, "never", rows[1][4])
}

func TestSaveServers(t *testing.T) {
	s := &session{registry: config.NewRegistry()}
	servers := []*discovery.Server{
		{Name: "My Home", IP: "192.168.1.20", Port: 5000, Reachable: true},
		{Name: "Cabin", IP: "192.168.1.30", Port: 5000},
	}

	saved := saveServers(s, servers)
	require.Len(t, saved, 1)
	assert.Equal(t, "my-home", saved[0].Key)
	assert.Equal(t, "http://192.168.1.20:5000", s.registry.GetBackend("my-home").URL)
	assert.Equal(t, "mdns", s.registry.GetBackend("my-home").Source)
	assert.Nil(t, s.registry.GetBackend("cabin"))

	rows := serverRows(servers)
	assert.Equal(t, "ready", rows[0][3])
	assert.Equal(t, "no answer", rows[1][3])
}

func TestSessionClient(t *testing.T) {
	reg := config.NewRegistry()
	reg.Preferences.PatternParam = "q"
	s := &session{registry: reg, baseURL: "http://dao.local:5000"}

	c := s.client()
	assert.Equal(t, "http://dao.local:5000", c.BaseURL)
	assert.Equal(t, "q", c.PatternParam)
	assert.Equal(t, reg.Preferences.CacheTTL(), c.CacheDuration)
	assert.Equal(t, reg.Preferences.Timeout(), c.HTTPClient.Timeout)
}
