package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/formpilot/internal/broadcast"
	"github.com/formpilot/formpilot/internal/engine/enginetest"
	"github.com/formpilot/formpilot/pkg/models"
)

// recordingSink collects everything published for one session.
type recordingSink struct {
	events chan models.Event
}

func (s *recordingSink) Send(ev models.Event) error {
	s.events <- ev
	return nil
}

func (s *recordingSink) drain() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-s.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func newTestExecutor(t *testing.T, sessionID string) (*Executor, *recordingSink) {
	t.Helper()
	events := broadcast.New()
	sink := &recordingSink{events: make(chan models.Event, 128)}
	id := events.Subscribe(sink)
	require.True(t, events.Bind(id, sessionID))
	x := New(events, Config{
		SettleDelay:  time.Millisecond,
		ClickSettle:  time.Millisecond,
		SubmitSettle: time.Millisecond,
	})
	return x, sink
}

func hasEvent(events []models.Event, kind models.EventKind, fieldKey, want string) bool {
	for _, ev := range events {
		if ev.Kind != kind {
			continue
		}
		if v, ok := ev.Fields[fieldKey].(string); ok && strings.Contains(v, want) {
			return true
		}
	}
	return false
}

func TestNavigateReturnsURLAndScreenshot(t *testing.T) {
	x, sink := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{URL: "https://exams.example.gov/apply"}

	pageURL, shot, err := x.Navigate(context.Background(), "s1", eng, "https://exams.example.gov")
	require.NoError(t, err)
	assert.Equal(t, "https://exams.example.gov/apply", pageURL)
	assert.NotEmpty(t, shot)

	require.Len(t, eng.Performed, 1)
	assert.Contains(t, eng.Performed[0], "go to https://exams.example.gov")

	got := sink.drain()
	assert.True(t, hasEvent(got, models.EventStatus, "step", "navigate"))
	assert.True(t, hasEvent(got, models.EventLog, "message", "Page loaded"))
}

func TestNavigateFailureEmitsErrorLog(t *testing.T) {
	x, sink := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{
		PerformErr: func(string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") },
	}

	_, _, err := x.Navigate(context.Background(), "s1", eng, "https://nope.invalid")
	require.Error(t, err)

	var actionErr *models.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "navigate", actionErr.Op)

	assert.True(t, hasEvent(sink.drain(), models.EventLog, "level", "error"))
}

func TestFillFieldsReportsEveryField(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{
		PerformErr: func(instruction string) error {
			if strings.Contains(instruction, "email") {
				return errors.New("element not found")
			}
			return nil
		},
	}

	fields := []models.FormField{
		{Key: "fullName", Value: "Priya Sharma", Type: models.FieldText},
		{Key: "email", Value: "priya@example.in", Type: models.FieldText},
		{Key: "mobileNumber", Value: "9876543210", Type: models.FieldText},
	}

	results, shot, err := x.FillFields(context.Background(), "s1", eng, fields)
	require.NoError(t, err, "a field failure must not abort the batch")
	assert.NotEmpty(t, shot)

	// Every field was attempted, in order, despite the middle failure.
	require.Len(t, eng.Performed, 3)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "element not found")
	assert.True(t, results[2].Success)
}

func TestFillFieldsPreservesOrder(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{}

	fields := []models.FormField{
		{Key: "state", Value: "Kerala", Type: models.FieldSelect},
		{Key: "district", Value: "Ernakulam", Type: models.FieldSelect},
	}

	_, _, err := x.FillFields(context.Background(), "s1", eng, fields)
	require.NoError(t, err)

	require.Len(t, eng.Performed, 2)
	assert.Contains(t, eng.Performed[0], "state")
	assert.Contains(t, eng.Performed[1], "district")
}

func TestClickTarget(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{URL: "https://exams.example.gov/step2"}

	shot, pageURL, err := x.ClickTarget(context.Background(), "s1", eng, "Next", "")
	require.NoError(t, err)
	assert.NotEmpty(t, shot)
	assert.Equal(t, "https://exams.example.gov/step2", pageURL)

	require.Len(t, eng.Performed, 1)
	assert.Equal(t, `click the "Next" button`, eng.Performed[0])
}

func TestSubmitUsesPrimaryCallToAction(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{}

	_, _, err := x.Submit(context.Background(), "s1", eng)
	require.NoError(t, err)

	require.Len(t, eng.Performed, 1)
	assert.Contains(t, eng.Performed[0], "primary call-to-action")
}

func TestEnterVerificationCode(t *testing.T) {
	x, sink := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{}

	shot, err := x.EnterVerificationCode(context.Background(), "s1", eng, models.InputOTP, "123456")
	require.NoError(t, err)
	assert.NotEmpty(t, shot)

	require.Len(t, eng.Performed, 1)
	assert.Contains(t, eng.Performed[0], `"123456"`)
	assert.True(t, hasEvent(sink.drain(), models.EventLog, "message", "Verification code entered"))
}

func TestAnalyzePage(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{
		QueryResult: map[string]interface{}{
			"pageType":   "OTP",
			"hasOtp":     true,
			"hasCaptcha": false,
			"buttons":    []interface{}{"Verify"},
		},
	}

	analysis, shot, err := x.AnalyzePage(context.Background(), "s1", eng)
	require.NoError(t, err)
	assert.NotEmpty(t, shot)
	assert.Equal(t, models.PageOTP, analysis.PageType)
	assert.True(t, analysis.HasOTP)
	assert.False(t, analysis.HasCaptcha)
	assert.Equal(t, []string{"Verify"}, analysis.Buttons)
}

func TestAnalyzePageDefaultsUnknown(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{QueryResult: map[string]interface{}{"hasOtp": false}}

	analysis, _, err := x.AnalyzePage(context.Background(), "s1", eng)
	require.NoError(t, err)
	assert.Equal(t, models.PageUnknown, analysis.PageType)
}

func TestScreenshotErrorPropagates(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{ScreenshotErr: errors.New("browser gone")}

	_, err := x.Screenshot(context.Background(), "s1", eng)
	require.Error(t, err)
	var actionErr *models.ActionError
	assert.ErrorAs(t, err, &actionErr)
}

func TestExecuteActAndObserve(t *testing.T) {
	x, _ := newTestExecutor(t, "s1")
	eng := &enginetest.Fake{QueryResult: map[string]interface{}{"heading": "Application Form"}}

	result, _, err := x.Execute(context.Background(), "s1", eng, models.ActionAct, "scroll to the bottom of the page")
	require.NoError(t, err)
	assert.Equal(t, true, result)
	require.Len(t, eng.Performed, 1)

	result, _, err = x.Execute(context.Background(), "s1", eng, models.ActionObserve, "what is the page heading")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"heading": "Application Form"}, result)
	require.Len(t, eng.Queried, 1)
}
