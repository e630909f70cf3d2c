package forwarding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kbenson/ride-harness/pkg/controller"
	"github.com/kbenson/ride-harness/pkg/topology"
)

const noCloudTopology = `
nodes:
  - name: s0
    kind: server
  - name: a1
    kind: switch
  - name: h0-0
    kind: host
    subscriber: true
links:
  - {a: s0, b: a1, bw: 100, latency: 1}
  - {a: a1, b: h0-0, bw: 100, latency: 1}
`

func writeTopo(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "topo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestProgramAllUnicastOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	path := writeTopo(t, noCloudTopology)
	topo, err := topology.Load(path, false)
	require.NoError(t, err)

	ca := controller.New(srv.URL, "", "", controller.ONOSDialect{}, zerolog.Nop())
	prog := New(topo, ca, controller.ONOSDialect{}, zerolog.Nop())

	plan := Plan{
		Subscribers:    topo.Subscribers(),
		Gateways:       nil,
		ComparisonMode: "none",
	}

	result, err := prog.ProgramAll(context.Background(), plan)
	require.NoError(t, err)
	require.NotEmpty(t, result.UnicastFlows)
}

func TestProgramAllRejectsOracleMode(t *testing.T) {
	path := writeTopo(t, noCloudTopology)
	topo, err := topology.Load(path, false)
	require.NoError(t, err)

	prog := New(topo, nil, controller.ONOSDialect{}, zerolog.Nop())
	_, err = prog.ProgramAll(context.Background(), Plan{ComparisonMode: "oracle"})
	require.Error(t, err)
}
