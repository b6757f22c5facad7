package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chromaServer is a minimal Chroma v2 server keeping ids per collection name.
type chromaServer struct {
	mu          sync.Mutex
	collections map[string][]string
	byID        map[string]string
}

func newChromaServer() *chromaServer {
	return &chromaServer{collections: make(map[string][]string), byID: make(map[string]string)}
}

func (c *chromaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	const prefix = "/api/v2/tenants/default_tenant/databases/default_database/collections"
	body, _ := io.ReadAll(r.Body)
	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.URL.Path == "/api/v2/heartbeat":
		reply(map[string]int64{"nanosecond heartbeat": 42})
	case r.URL.Path == "/api/v2/version":
		_, _ = fmt.Fprint(w, `"1.0.9"`)
	case r.URL.Path == "/api/v2/pre-flight-checks":
		reply(map[string]any{"max_batch_size": 1000})
	case r.URL.Path == prefix:
		var req struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(body, &req)
		id := "id-" + req.Name
		c.byID[id] = req.Name
		if _, ok := c.collections[req.Name]; !ok {
			c.collections[req.Name] = nil
		}
		reply(map[string]string{"id": id, "name": req.Name, "tenant": "default_tenant", "database": "default_database"})
	case strings.HasPrefix(r.URL.Path, prefix+"/"):
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix+"/"), "/")
		name := c.byID[parts[0]]
		ids := c.collections[name]
		switch parts[1] {
		case "count":
			_, _ = fmt.Fprint(w, len(ids))
		case "get":
			var req struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
			}
			_ = json.Unmarshal(body, &req)
			start := min(req.Offset, len(ids))
			end := min(start+req.Limit, len(ids))
			reply(map[string]any{"ids": ids[start:end]})
		case "add":
			var req struct {
				IDs []string `json:"ids"`
			}
			_ = json.Unmarshal(body, &req)
			c.collections[name] = append(ids, req.IDs...)
			w.WriteHeader(http.StatusCreated)
			reply(map[string]any{})
		}
	default:
		http.NotFound(w, r)
	}
}

func (c *chromaServer) ids(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.collections[name]...)
}

// embeddingsServer serves an OpenAI-compatible /v1/embeddings endpoint
// returning a fixed-size vector per input.
func embeddingsServer(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{0.1, 0.2, 0.3}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(server.Close)
	return server.URL + "/v1"
}

// startChroma starts the fake Chroma and embeddings servers and returns the
// flags pointing the command at them.
func startChroma(t *testing.T) (*chromaServer, []string) {
	t.Helper()
	fake := newChromaServer()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	host, port, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, err)
	return fake, []string{"--host", host, "--port", port, "--embed-url", embeddingsServer(t)}
}

func seedStore(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "claude-mem.db")
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.Exec(`
		CREATE TABLE sdk_sessions (id INTEGER PRIMARY KEY, content_session_id TEXT, memory_session_id TEXT, project TEXT);
		CREATE TABLE observations (id INTEGER PRIMARY KEY, memory_session_id TEXT, project TEXT, type TEXT, title TEXT,
			narrative TEXT, facts TEXT, concepts TEXT, created_at_epoch INTEGER);
		CREATE TABLE session_summaries (id INTEGER PRIMARY KEY, memory_session_id TEXT, project TEXT, request TEXT,
			investigated TEXT, learned TEXT, completed TEXT, next_steps TEXT, notes TEXT, prompt_number INTEGER, created_at_epoch INTEGER);
		CREATE TABLE user_prompts (id INTEGER PRIMARY KEY, content_session_id TEXT, prompt_number INTEGER, prompt_text TEXT, created_at_epoch INTEGER);

		INSERT INTO sdk_sessions VALUES (1, 'c-1', 'm-1', 'alpha'), (2, 'c-2', 'm-2', 'beta');
		INSERT INTO observations VALUES
			(7, 'm-1', 'alpha', 'discovery', 'Found bug', 'Found bug', '[]', NULL, 100),
			(8, 'm-2', 'beta', 'feature', 'Add flag', 'Added flag', '["one","two"]', '["cli"]', 200);
		INSERT INTO session_summaries VALUES (3, 'm-1', 'alpha', 'Fix login', NULL, 'Tokens expire', NULL, NULL, NULL, 1, 300);
		INSERT INTO user_prompts VALUES (9, 'c-1', 1, '   ', 400), (10, 'c-2', 1, 'add a flag', 500);
	`)
	require.NoError(t, err)
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CLAUDE_MEM_DATA_DIR", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_Defaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("CLAUDE_MEM_DATA_DIR", dataDir)
	t.Setenv("CLAUDE_MEM_CHROMA_HOST", "")
	t.Setenv("CLAUDE_MEM_CHROMA_PORT", "")

	cmd := newRootCmd(io.Discard, io.Discard)
	flags := cmd.Flags()

	tests := map[string]string{
		"db":          filepath.Join(dataDir, "claude-mem.db"),
		"host":        "127.0.0.1",
		"port":        "8000",
		"collection":  "cm__claude-mem",
		"dry-run":     "false",
		"batch-size":  "50",
		"page-size":   "10000",
		"tenant":      "default_tenant",
		"database":    "default_database",
		"embed-model": "all-minilm",
	}
	for name, want := range tests {
		f := flags.Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, want, f.DefValue, name)
	}
}

func TestRootCmd_EmbedModelHelp(t *testing.T) {
	cmd := newRootCmd(io.Discard, io.Discard)
	f := cmd.Flags().Lookup("embed-model")
	require.NotNil(t, f)
	assert.Contains(t, f.Usage, "must match the model the collection was written with")
}

func TestRootCmd_SettingsFileDefaults(t *testing.T) {
	t.Setenv("CLAUDE_MEM_CHROMA_HOST", "")
	t.Setenv("CLAUDE_MEM_CHROMA_PORT", "9100")

	cmd := newRootCmd(io.Discard, io.Discard)
	assert.Equal(t, "9100", cmd.Flags().Lookup("port").DefValue)
}

func TestRun_MissingStore(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.db")

	_, stderr, err := execute(t, "--db", missing)
	require.Error(t, err)
	assert.Contains(t, stderr, "Database not found at "+missing)
	assert.Contains(t, stderr, "Set --db or CLAUDE_MEM_DATA_DIR environment variable.")
	assert.NoFileExists(t, missing)
}

func TestRun_ChromaUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, stderr, err := execute(t, "--db", seedStore(t), "--port", strconv.Itoa(port))
	require.Error(t, err)
	assert.Contains(t, stderr, "Cannot connect to ChromaDB at 127.0.0.1:"+strconv.Itoa(port))
	assert.Contains(t, stderr, "Make sure your Chroma server is running.")
}

func TestRun_BackfillThenIdempotent(t *testing.T) {
	fake, chromaArgs := startChroma(t)
	dbPath := seedStore(t)
	args := append([]string{"--db", dbPath}, chromaArgs...)

	stdout, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Connected (version: 1.0.9)")
	assert.Contains(t, stdout, "Backfill complete!")
	assert.Contains(t, stdout, "Documents added: 7")
	assert.Contains(t, stdout, "│ observations │")

	assert.ElementsMatch(t, []string{
		"obs_7_narrative",
		"obs_8_narrative", "obs_8_fact_0", "obs_8_fact_1",
		"summary_3_request", "summary_3_learned",
		"prompt_10",
	}, fake.ids("cm__claude-mem"))

	stdout, _, err = execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Documents added: 0")
	assert.Len(t, fake.ids("cm__claude-mem"), 7)
}

func TestRun_DryRun(t *testing.T) {
	fake, chromaArgs := startChroma(t)

	stdout, _, err := execute(t, append([]string{"--db", seedStore(t), "--dry-run"}, chromaArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dry run complete")
	assert.Contains(t, stdout, "Documents to add: 7")
	assert.Empty(t, fake.ids("cm__claude-mem"))
}

func TestRun_ProjectDerivesCollection(t *testing.T) {
	fake, chromaArgs := startChroma(t)

	_, _, err := execute(t, append([]string{"--db", seedStore(t), "--project", "beta"}, chromaArgs...)...)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"obs_8_narrative", "obs_8_fact_0", "obs_8_fact_1", "prompt_10"}, fake.ids("cm__beta"))
	assert.Empty(t, fake.ids("cm__claude-mem"))
}

func TestRun_ProjectWithExplicitCollection(t *testing.T) {
	fake, chromaArgs := startChroma(t)

	_, _, err := execute(t, append([]string{"--db", seedStore(t), "--project", "beta", "--collection", "custom"}, chromaArgs...)...)
	require.NoError(t, err)
	assert.Len(t, fake.ids("custom"), 4)
}

func TestRun_TargetsFile(t *testing.T) {
	fake, chromaArgs := startChroma(t)
	targets := filepath.Join(t.TempDir(), "targets.yml")
	require.NoError(t, os.WriteFile(targets, []byte(`
collections:
  - project: alpha
  - project: beta
    name: beta-notes
`), 0600))

	stdout, _, err := execute(t, append([]string{"--db", seedStore(t), "--targets", targets}, chromaArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Collection 'cm__alpha' (project alpha)")
	assert.Contains(t, stdout, "Collection 'beta-notes' (project beta)")

	assert.ElementsMatch(t, []string{"obs_7_narrative", "summary_3_request", "summary_3_learned"}, fake.ids("cm__alpha"))
	assert.Len(t, fake.ids("beta-notes"), 4)
}

func TestRun_TargetsConflictsWithProject(t *testing.T) {
	targets := filepath.Join(t.TempDir(), "targets.yml")
	require.NoError(t, os.WriteFile(targets, []byte("collections:\n  - project: alpha\n"), 0600))

	_, stderr, err := execute(t, "--db", seedStore(t), "--targets", targets, "--project", "alpha")
	require.Error(t, err)
	assert.Contains(t, stderr, "--targets cannot be combined")
}

func TestRun_LogsStartupDetails(t *testing.T) {
	_, chromaArgs := startChroma(t)
	targets := filepath.Join(t.TempDir(), "targets.yml")
	require.NoError(t, os.WriteFile(targets, []byte("collections:\n  - project: beta\n  - project: alpha\n"), 0600))

	_, stderr, err := execute(t, append([]string{"--db", seedStore(t), "--targets", targets, "--debug"}, chromaArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, stderr, "dialect=sqlite")
	assert.Contains(t, stderr, `collections=["cm__alpha","cm__beta"]`)
	assert.Contains(t, stderr, "id=id-cm__alpha")
	assert.Contains(t, stderr, "id=id-cm__beta")
}
