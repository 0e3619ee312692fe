package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/formpilot/internal/broadcast"
	"github.com/formpilot/formpilot/internal/engine/enginetest"
	"github.com/formpilot/formpilot/internal/executor"
	"github.com/formpilot/formpilot/internal/session"
	"github.com/formpilot/formpilot/internal/workflow"
	"github.com/formpilot/formpilot/pkg/models"
)

type testStack struct {
	srv      *httptest.Server
	orc      *workflow.Orchestrator
	events   *broadcast.Broadcaster
	launcher *enginetest.Launcher
}

func newStack(t *testing.T) *testStack {
	t.Helper()

	launcher := enginetest.NewLauncher()
	registry := session.NewRegistry(launcher, session.Config{})
	events := broadcast.New()
	exec := executor.New(events, executor.Config{
		SettleDelay:  time.Millisecond,
		ClickSettle:  time.Millisecond,
		SubmitSettle: time.Millisecond,
	})
	orc := workflow.New(registry, exec, events)

	server := NewServer(events, orc)
	srv := httptest.NewServer(http.HandlerFunc(server.HandleConnection))
	t.Cleanup(func() {
		srv.Close()
		registry.Stop()
		registry.CloseAll(context.Background())
	})
	return &testStack{srv: srv, orc: orc, events: events, launcher: launcher}
}

func dial(t *testing.T, stack *testStack) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(stack.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestSubscribeAck(t *testing.T) {
	stack := newStack(t)
	conn := dial(t, stack)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":      "subscribe",
		"sessionId": "s1",
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "subscribed", frame["type"])
	assert.Equal(t, "s1", frame["sessionId"])
}

func TestSubscribeRequiresSessionID(t *testing.T) {
	stack := newStack(t)
	conn := dial(t, stack)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
}

func TestUnknownMessageType(t *testing.T) {
	stack := newStack(t)
	conn := dial(t, stack)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Contains(t, frame["error"], "unknown message type")
}

func TestBoundConnectionReceivesSessionEvents(t *testing.T) {
	stack := newStack(t)
	conn := dial(t, stack)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":      "subscribe",
		"sessionId": "s1",
	}))
	readFrame(t, conn) // ack

	stack.events.Log("s1", "info", "hello observer")
	stack.events.Log("s2", "info", "different session")

	frame := readFrame(t, conn)
	assert.Equal(t, "log", frame["type"])
	assert.Equal(t, "s1", frame["sessionId"])
	assert.Equal(t, "hello observer", frame["message"])
	assert.NotEmpty(t, frame["timestamp"])

	// Nothing further: the s2 event must not arrive. Probe with a
	// sentinel event for our own session.
	stack.events.Log("s1", "info", "sentinel")
	frame = readFrame(t, conn)
	assert.Equal(t, "sentinel", frame["message"])
}

func TestInputOverWebSocketResolvesVerification(t *testing.T) {
	stack := newStack(t)

	_, err := stack.orc.Init(context.Background(), models.InitRequest{
		SessionID: "s1",
		URL:       "https://exams.example.gov/register",
	})
	require.NoError(t, err)
	stack.launcher.Engine("s1").SetQueryResult(map[string]interface{}{
		"pageType": "otp",
		"hasOtp":   true,
	})

	conn := dial(t, stack)
	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":      "subscribe",
		"sessionId": "s1",
	}))
	readFrame(t, conn) // ack

	_, err = stack.orc.Analyze(context.Background(), models.SessionRequest{SessionID: "s1"})
	require.NoError(t, err)

	// Drain frames until the input prompt arrives.
	var prompt map[string]interface{}
	for i := 0; i < 20; i++ {
		frame := readFrame(t, conn)
		if frame["type"] == "request_input" {
			prompt = frame
			break
		}
	}
	require.NotNil(t, prompt, "observer never saw the input prompt")
	assert.Equal(t, models.InputOTP, prompt["inputType"])

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":      "input",
		"sessionId": "s1",
		"inputType": models.InputOTP,
		"value":     "482913",
	}))

	// The resumed workflow narrates entering the code.
	deadline := time.Now().Add(5 * time.Second)
	entered := false
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn)
		if msg, ok := frame["message"].(string); ok && strings.Contains(msg, "Verification code entered") {
			entered = true
			break
		}
	}
	assert.True(t, entered, "expected the workflow to resume and type the code")
}

func TestInputValidationOverWebSocket(t *testing.T) {
	stack := newStack(t)
	conn := dial(t, stack)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":      "input",
		"sessionId": "s1",
		"inputType": "fingerprint",
		"value":     "x",
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
}
