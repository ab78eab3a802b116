package fakebackend

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/schema"
)

func newTestClient(t *testing.T) (*Server, *backend.Client) {
	t.Helper()
	fixture, err := LoadDemo()
	require.NoError(t, err)

	srv := New(fixture)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, backend.NewClientWithURL(ts.URL)
}

func TestLoadDemo(t *testing.T) {
	fixture, err := LoadDemo()
	require.NoError(t, err)

	assert.NotEmpty(t, fixture.Entities)
	assert.Contains(t, fixture.Secrets, "ha_token")
	require.Contains(t, fixture.Documents, "options")

	s, err := schema.Parse(fixture.Schema)
	require.NoError(t, err)
	doc, err := schema.DecodeDocument(fixture.Documents["options"])
	require.NoError(t, err)

	byID := make(map[string]schema.Field)
	for _, f := range s.Fields(doc) {
		byID[f.ID()] = f
	}
	require.Contains(t, byID, "battery.0.upper limit")
	assert.True(t, byID["battery.0.upper limit"].AllowsToggle())
	assert.True(t, byID["battery.0.entity actual level"].ReferenceOnly())
	assert.True(t, byID["homeassistant.token"].Secret)
	assert.Equal(t, []any{"minimize cost", "minimize consumption"}, byID["strategy.optimize"].Options)

	help, err := DemoHelp()
	require.NoError(t, err)
	assert.NotEmpty(t, help["homeassistant"]["token"])
}

func TestServer_FetchAll(t *testing.T) {
	srv, client := newTestClient(t)

	entities, err := client.FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, entities, 11)

	_, err = client.FetchAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), srv.EntityRequests(), "second call served from cache")
}

func TestServer_Search(t *testing.T) {
	srv, client := newTestClient(t)

	tests := []struct {
		name    string
		domain  string
		pattern string
		want    []string
	}{
		{"sensor temp", "sensor", "temp", []string{"sensor.temp_1", "sensor.temp_2"}},
		{"friendly name", "sensor", "living room", []string{"sensor.livingroom_humidity", "sensor.temp_1"}},
		{"case insensitive", "input_number", "BATTERY", []string{"input_number.battery_lower_limit", "input_number.battery_upper_limit"}},
		{"domain list", "input_number,number", "limit", []string{"input_number.battery_lower_limit", "input_number.battery_upper_limit", "number.inverter_charge_limit"}},
		{"no match", "sensor", "zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := client.Search(context.Background(), tt.domain, tt.pattern)
			require.NoError(t, err)

			ids := make([]string, 0, len(results))
			for _, e := range results {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)

			domain, pattern := srv.LastSearch()
			assert.Equal(t, tt.domain, domain)
			assert.Equal(t, tt.pattern, pattern)
		})
	}
}

func TestServer_SearchAcceptsQ(t *testing.T) {
	srv, client := newTestClient(t)
	client.PatternParam = "q"

	results, err := client.Search(context.Background(), "switch", "boil")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "switch.boiler", results[0].ID)

	_, pattern := srv.LastSearch()
	assert.Equal(t, "boil", pattern)
}

func TestServer_Failing(t *testing.T) {
	srv, client := newTestClient(t)
	srv.SetFailing(true)

	_, err := client.FetchAll(context.Background(), false)
	require.Error(t, err)
	assert.True(t, backend.IsIndexUnavailable(err))

	_, err = client.Search(context.Background(), "sensor", "temp")
	assert.True(t, backend.IsIndexUnavailable(err))

	srv.SetFailing(false)
	_, err = client.FetchAll(context.Background(), false)
	assert.NoError(t, err)
}

func TestServer_Settings(t *testing.T) {
	srv, client := newTestClient(t)
	ctx := context.Background()

	raw, err := client.GetSettings(ctx, "options")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "homeassistant")

	require.NoError(t, client.SaveSettings(ctx, "options", json.RawMessage(`{"grid":{"max_power":12}}`)))
	stored, ok := srv.Document("options")
	require.True(t, ok)
	assert.JSONEq(t, `{"grid":{"max_power":12}}`, string(stored))

	_, err = client.GetSettings(ctx, "missing")
	require.Error(t, err)
	assert.True(t, backend.IsErrorPayload(err))
}

func TestServer_Secrets(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	keys, err := client.SecretKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"db_password", "ha_token", "meteoserver-key", "tibber_api_token"}, keys)

	require.NoError(t, client.SaveSettings(ctx, "secrets", json.RawMessage(`{"only":"one"}`)))
	keys, err = client.SecretKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, keys)

	err = client.SaveSettings(ctx, "secrets", json.RawMessage(`{"nested":{"a":1}}`))
	require.Error(t, err)
	assert.True(t, backend.IsErrorPayload(err))
}

func TestServer_Schema(t *testing.T) {
	_, client := newTestClient(t)

	s, err := client.GetSchema(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, s.Root.Properties["battery"])
}

func TestServer_Start(t *testing.T) {
	fixture, err := LoadDemo()
	require.NoError(t, err)

	url, stop, err := New(fixture).Start("127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = stop(context.Background()) }()

	keys, err := backend.NewClientWithURL(url).SecretKeys(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, keys)
}

func TestFixtureClone(t *testing.T) {
	fixture, err := LoadDemo()
	require.NoError(t, err)

	srv := New(fixture)
	fixture.Secrets["added"] = "x"
	fixture.Documents["options"] = json.RawMessage(`{}`)

	doc, _ := srv.Document("options")
	assert.NotEqual(t, `{}`, string(doc))
}
