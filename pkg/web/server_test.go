package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"courtbot/pkg/booking"
	"courtbot/pkg/log"
)

// stagedBooker walks through a few stages, blocking on release before finishing.
type stagedBooker struct {
	release chan struct{}
	courts  chan string
}

func (b *stagedBooker) Check(ctx context.Context, dateText, timeText string, options ...booking.Option) booking.AvailabilityOutcome {
	report := booking.StagesOf(options...)
	report(booking.StageNavigating)
	<-b.release
	report(booking.StageClassifying)
	report(booking.StageDone)
	return booking.AvailabilityOutcome{Status: booking.AvailabilityAvailable, Label: "9:00 PM", Message: "available"}
}

func (b *stagedBooker) Book(ctx context.Context, dateText, timeText, resource string, options ...booking.Option) booking.BookingOutcome {
	b.courts <- resource
	report := booking.StagesOf(options...)
	report(booking.StageDone)
	return booking.BookingOutcome{Success: true, Message: "Booked"}
}

func newTestServer(t *testing.T, booker Booker) (*Server, *httptest.Server) {
	t.Helper()
	t.Cleanup(log.Replace(zaptest.NewLogger(t)))
	server := NewServer(context.Background(), booker)
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return server, httpServer
}

func startJob(t *testing.T, baseURL, path, body string) string {
	t.Helper()
	response, err := http.Post(baseURL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer response.Body.Close()
	require.Equal(t, http.StatusAccepted, response.StatusCode)
	var started map[string]string
	require.NoError(t, json.NewDecoder(response.Body).Decode(&started))
	require.NotEmpty(t, started["jobID"])
	return started["jobID"]
}

func TestCheckJobStreamsStagesThenResult(t *testing.T) {
	booker := &stagedBooker{release: make(chan struct{})}
	server, httpServer := newTestServer(t, booker)

	jobID := startJob(t, httpServer.URL, "/check", `{"date":"2/24","time":"9-11p"}`)

	pending, err := http.Get(httpServer.URL + "/job/" + jobID + "/result")
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, pending.StatusCode)
	pending.Body.Close()

	events, err := http.Get(httpServer.URL + "/job/" + jobID + "/events")
	require.NoError(t, err)
	defer events.Body.Close()
	require.Equal(t, "text/event-stream", events.Header.Get("Content-Type"))

	close(booker.release)
	var stages []string
	scanner := bufio.NewScanner(events.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]string
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		stages = append(stages, event["stage"])
	}
	require.NotEmpty(t, stages)
	require.Equal(t, "done", stages[len(stages)-1])
	require.NotContains(t, stages[:len(stages)-1], "done")
	server.Wait()

	result, err := http.Get(httpServer.URL + "/job/" + jobID + "/result")
	require.NoError(t, err)
	defer result.Body.Close()
	require.Equal(t, http.StatusOK, result.StatusCode)
	var outcome booking.AvailabilityOutcome
	require.NoError(t, json.NewDecoder(result.Body).Decode(&outcome))
	require.Equal(t, booking.AvailabilityAvailable, outcome.Status)
}

func TestBookJobPassesCourt(t *testing.T) {
	booker := &stagedBooker{courts: make(chan string, 1)}
	server, httpServer := newTestServer(t, booker)

	jobID := startJob(t, httpServer.URL, "/book", `{"date":"2/24","time":"9-11p","court":"Court 3"}`)
	require.Equal(t, "Court 3", <-booker.courts)
	server.Wait()

	events, err := http.Get(httpServer.URL + "/job/" + jobID + "/events")
	require.NoError(t, err)
	defer events.Body.Close()
	scanner := bufio.NewScanner(events.Body)
	require.True(t, scanner.Scan())
	require.Equal(t, `data: {"stage":"done"}`, scanner.Text())
}

func TestFinishedJobsAreEvictedAfterRetention(t *testing.T) {
	booker := &stagedBooker{courts: make(chan string, 2)}
	server, httpServer := newTestServer(t, booker)
	var clockMutex sync.Mutex
	current := time.Date(2026, time.February, 10, 18, 0, 0, 0, time.UTC)
	server.now = func() time.Time {
		clockMutex.Lock()
		defer clockMutex.Unlock()
		return current
	}

	firstJob := startJob(t, httpServer.URL, "/book", `{"date":"2/24","time":"9-11p"}`)
	<-booker.courts
	server.Wait()

	clockMutex.Lock()
	current = current.Add(defaultJobRetention + time.Minute)
	clockMutex.Unlock()

	secondJob := startJob(t, httpServer.URL, "/book", `{"date":"2/25","time":"9-11p"}`)
	<-booker.courts
	server.Wait()

	response, err := http.Get(httpServer.URL + "/job/" + firstJob + "/result")
	require.NoError(t, err)
	response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)

	response, err = http.Get(httpServer.URL + "/job/" + secondJob + "/result")
	require.NoError(t, err)
	response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
}

func TestRejectsBadRequests(t *testing.T) {
	_, httpServer := newTestServer(t, &stagedBooker{})

	response, err := http.Post(httpServer.URL+"/check", "application/json", strings.NewReader(`{"date":"2/24"}`))
	require.NoError(t, err)
	response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, err = http.Post(httpServer.URL+"/book", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	response.Body.Close()
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, err = http.Get(httpServer.URL + "/job/missing/events")
	require.NoError(t, err)
	response.Body.Close()
	require.Equal(t, http.StatusNotFound, response.StatusCode)

	response, err = http.Get(httpServer.URL + "/check")
	require.NoError(t, err)
	response.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
}
