package apiserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicfatigue/merlinctl/internal/apiserver"
	"github.com/epicfatigue/merlinctl/internal/command"
	"github.com/epicfatigue/merlinctl/internal/config"
	"github.com/epicfatigue/merlinctl/internal/controlloop"
	"github.com/epicfatigue/merlinctl/internal/deviceinfo"
	"github.com/epicfatigue/merlinctl/internal/fsm"
	"github.com/epicfatigue/merlinctl/internal/fsmdata"
	"github.com/epicfatigue/merlinctl/internal/hardware/hwtest"
	"github.com/epicfatigue/merlinctl/internal/metrics"
	"github.com/epicfatigue/merlinctl/internal/panelui"
	"github.com/epicfatigue/merlinctl/internal/pidctl"
)

func newTestServer(t *testing.T) (*apiserver.Server, *command.Queue) {
	t.Helper()
	reg := fsm.NewRegistry()
	m := fsm.NewMachine(reg)
	ctx := &fsm.Context{
		HW:   hwtest.New(),
		Cfg:  config.Default(),
		Data: &fsmdata.Data{SelectedProgram: 1},
		PID:  pidctl.New(1, 0, 0, time.Second, 0, 100, 0, 10*time.Second, 10),
	}
	queue := &command.Queue{}
	loop := &controlloop.Loop{Machine: m, Ctx: ctx, Queue: queue, Panel: panelui.New()}

	srv := apiserver.New(loop, queue, nil, deviceinfo.Info{MachineID: "m-1", FirmwareVersion: "9.9"}, metrics.New())
	return srv, queue
}

func TestStatusBeforeFirstTickReturns503(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCommandRoutesSubmitsToQueue(t *testing.T) {
	srv, queue := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command/start-decarb", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cmd, ok := queue.Drain()
	require.True(t, ok)
	assert.IsType(t, command.StartDecarb{}, cmd)
}

func TestCommandWithBodyDecodesFields(t *testing.T) {
	srv, queue := newTestServer(t)

	body := strings.NewReader(`{"run_full": true, "soak_time_seconds": 42}`)
	req := httptest.NewRequest(http.MethodPost, "/command/start-extraction", body)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cmd, ok := queue.Drain()
	require.True(t, ok)
	se, ok := cmd.(command.StartExtraction)
	require.True(t, ok)
	assert.True(t, se.RunFull)
	require.NotNil(t, se.SoakTime)
	assert.Equal(t, uint32(42), *se.SoakTime)
}

func TestUnknownCommandIsRejectedWith409(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command/not-a-real-command", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rejected", body["type"])
}

func TestGetOnCommandRouteIsMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/command/reset", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCleanValveParsesIDFromPath(t *testing.T) {
	srv, queue := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/command/clean-valve/3", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cmd, ok := queue.Drain()
	require.True(t, ok)
	assert.Equal(t, command.CleanValve{Valve: 3}, cmd)
}

func TestMetricsEndpointIsScrapable(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "merlin_")
}
