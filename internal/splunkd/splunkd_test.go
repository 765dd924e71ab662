package splunkd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
)

const nsPrefix = "/servicesNS/nobody/signalfx-forwarder-app/"

func newTestBackend(t *testing.T, handler http.HandlerFunc) (*Backend, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClientWithHTTP(zap.NewNop(), Config{
		BaseURL:    server.URL + "/",
		SessionKey: "sess-123",
	}, nil, server.Client())
	return NewBackend(client, zap.NewNop()), server
}

func readForm(t *testing.T, r *http.Request) url.Values {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	return form
}

func TestSearchRows_UnmarshalVariants(t *testing.T) {
	raw := `{"fields":["ingest_url",{"name":"_key"}],"rows":[["https://a",["k1","k2"]],[null,"k3"]]}`

	var rows SearchRows
	require.NoError(t, json.Unmarshal([]byte(raw), &rows))

	assert.Equal(t, []string{"ingest_url", "_key"}, rows.Fields)
	recs := rows.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "https://a", recs[0]["ingest_url"])
	assert.Equal(t, "k1", recs[0]["_key"])
	assert.Equal(t, "", recs[1]["ingest_url"])
	assert.Equal(t, "k3", recs[1]["_key"])
}

func TestQuote_EscapesSPL(t *testing.T) {
	assert.Equal(t, `"plain"`, Quote("plain"))
	assert.Equal(t, `"a\"b\\c"`, Quote(`a"b\c`))
}

func TestReadIngestConfig_FirstRow(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, nsPrefix+"search/jobs", r.URL.Path)
		assert.Equal(t, "Splunk sess-123", r.Header.Get("Authorization"))

		form := readForm(t, r)
		assert.Equal(t, "oneshot", form.Get("exec_mode"))
		assert.Equal(t, "json_rows", form.Get("output_mode"))
		assert.Equal(t, "| inputlookup sfx_ingest_config_lookup | table ingest_url, _key", form.Get("search"))

		_, _ = w.Write([]byte(`{"fields":["ingest_url","_key"],"rows":[["https://ingest.eu0.signalfx.com","abc"]]}`))
	})

	cfg, err := b.ReadIngestConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "https://ingest.eu0.signalfx.com", cfg.IngestURL)
	assert.Equal(t, "abc", cfg.Key)
}

func TestReadIngestConfig_FieldOrderIndependent(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"fields":["_key","ingest_url"],"rows":[["abc","https://x"]]}`))
	})

	cfg, err := b.ReadIngestConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://x", cfg.IngestURL)
	assert.Equal(t, "abc", cfg.Key)
}

func TestReadIngestConfig_Empty(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"fields":["ingest_url","_key"],"rows":[]}`))
	})

	cfg, err := b.ReadIngestConfig(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestReadIngestConfig_ServerError(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"messages":[{"type":"ERROR","text":"no permission"}]}`))
	})

	cfg, err := b.ReadIngestConfig(context.Background())
	require.Error(t, err)
	assert.Nil(t, cfg)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Equal(t, "no permission", se.Message)
}

func TestCreateIngestConfig_ReturnsKey(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, nsPrefix+"storage/collections/data/sfx_ingest_config/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://new", body["ingest_url"])
		assert.Equal(t, "", body["_key"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_key":"5f1e"}`))
	})

	cfg, err := b.CreateIngestConfig(context.Background(), "https://new")
	require.NoError(t, err)
	assert.Equal(t, "5f1e", cfg.Key)
	assert.Equal(t, "https://new", cfg.IngestURL)
}

func TestUpdateIngestConfig_RunsOutputLookup(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		form := readForm(t, r)
		assert.Equal(t,
			`| inputlookup sfx_ingest_config_lookup | search _key="abc" | eval ingest_url="https://u\"x" | outputlookup sfx_ingest_config_lookup`,
			form.Get("search"))
		_, _ = w.Write([]byte(`{"fields":[],"rows":[]}`))
	})

	cfg, err := b.UpdateIngestConfig(context.Background(), "abc", `https://u"x`)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Key)
}

func TestUpdateIngestConfig_EmptyKey(t *testing.T) {
	b, _ := newTestBackend(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := b.UpdateIngestConfig(context.Background(), "", "https://u")
	require.Error(t, err)
}

func TestReadAccessToken_FindsRealmAndUser(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, nsPrefix+"storage/passwords", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("count"))
		assert.Equal(t, "json", r.URL.Query().Get("output_mode"))

		_, _ = w.Write([]byte(`{"entry":[
			{"name":"other:access_token:","content":{"realm":"other","username":"access_token","clear_password":"nope"}},
			{"name":"sfx_ingest_command:access_token:","content":{"realm":"sfx_ingest_command","username":"access_token","clear_password":"tok-1"}}
		]}`))
	})

	cred, err := b.ReadAccessToken(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "tok-1", cred.ClearPassword)
}

func TestReadAccessToken_Absent(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"entry":[]}`))
	})

	cred, err := b.ReadAccessToken(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestCreateAccessToken_SetsACL(t *testing.T) {
	var paths []string
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		form := readForm(t, r)
		switch r.URL.Path {
		case nsPrefix + "storage/passwords":
			assert.Equal(t, "access_token", form.Get("name"))
			assert.Equal(t, "sfx_ingest_command", form.Get("realm"))
			assert.Equal(t, "tok-new", form.Get("password"))
			w.WriteHeader(http.StatusCreated)
		case nsPrefix + "storage/passwords/_acl":
			assert.Equal(t, "system", form.Get("sharing"))
			assert.Equal(t, "*", form.Get("perms.read"))
			assert.Equal(t, "admin", form.Get("perms.write"))
		}
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, b.CreateAccessToken(context.Background(), "tok-new"))
	assert.Equal(t, []string{nsPrefix + "storage/passwords", nsPrefix + "storage/passwords/_acl"}, paths)
}

func TestCreateAccessToken_ACLFailureIsWarning(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == nsPrefix+"storage/passwords/_acl" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"messages":[{"type":"ERROR","text":"bad acl"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	err := b.CreateAccessToken(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrACLNotApplied)
}

func TestCreateAccessToken_CreateFailure(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"messages":[{"type":"ERROR","text":"exists"}]}`))
	})

	err := b.CreateAccessToken(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, backend.ErrACLNotApplied)
}

func TestUpdateAccessToken_PostsToEntity(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, nsPrefix+"storage/passwords/sfx_ingest_command:access_token:", r.URL.Path)
		assert.Equal(t, "tok-2", readForm(t, r).Get("password"))
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, b.UpdateAccessToken(context.Background(), "tok-2"))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClientWithHTTP(zap.NewNop(), Config{BaseURL: server.URL, Token: "t", RetryMax: 1}, nil, server.Client())
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient(zap.NewNop(), Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, nil)
	err := client.Ping(context.Background())
	require.Error(t, err)
}

func TestClient_AuthHeaders(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		assert.Equal(t, "/services/server/info", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClientWithHTTP(nil, Config{BaseURL: server.URL, Token: "jwt"}, nil, server.Client())
	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "Bearer jwt", got)

	client = NewClientWithHTTP(nil, Config{BaseURL: server.URL, Username: "admin", Password: "changeme"}, nil, server.Client())
	require.NoError(t, client.Ping(context.Background()))
	assert.Contains(t, got, "Basic ")
}
