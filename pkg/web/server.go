// Package web exposes checks and bookings over HTTP. Each request starts a job whose stages
// stream as server-sent events and whose outcome is fetched when the job is done.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"courtbot/pkg/booking"
	"courtbot/pkg/log"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	stageQueuedLiteral = "queued"
	stageDoneLiteral   = string(booking.StageDone)
	maxRequestBytes    = 1 << 16
	subscriberBuffer   = 8

	// finished jobs stay fetchable this long before a later job start evicts them
	defaultJobRetention = 15 * time.Minute
)

type Booker interface {
	Check(ctx context.Context, dateText, timeText string, options ...booking.Option) booking.AvailabilityOutcome
	Book(ctx context.Context, dateText, timeText, resource string, options ...booking.Option) booking.BookingOutcome
}

type jobRequest struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Court string `json:"court"`
}

type processingJob struct {
	mutex        sync.RWMutex
	currentStage string
	subscribers  map[chan string]struct{}
	resultJSON   []byte
	finishedAt   time.Time
}

func newProcessingJob() *processingJob {
	return &processingJob{
		currentStage: stageQueuedLiteral,
		subscribers:  map[chan string]struct{}{},
	}
}

// setStage fans the stage out to subscribers. The done stage closes every subscriber so a
// slow reader that missed it still sees the stream end.
func (j *processingJob) setStage(newStage string) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if j.currentStage == stageDoneLiteral {
		return
	}
	j.currentStage = newStage
	for stageChannel := range j.subscribers {
		select {
		case stageChannel <- newStage:
		default:
		}
		if newStage == stageDoneLiteral {
			close(stageChannel)
			delete(j.subscribers, stageChannel)
		}
	}
}

// stageOption forwards orchestrator stages except done, which finish sends once the result
// is stored.
func (j *processingJob) stageOption() booking.Option {
	return booking.WithStages(func(stage booking.Stage) {
		if stage != booking.StageDone {
			j.setStage(string(stage))
		}
	})
}

func (j *processingJob) finish(result any, finishedAt time.Time) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		log.L().Error("job_result_encode_failed", zap.Error(err))
		resultJSON = []byte(`{"message":"result could not be encoded"}`)
	}
	j.mutex.Lock()
	j.resultJSON = resultJSON
	j.finishedAt = finishedAt
	j.mutex.Unlock()
	j.setStage(stageDoneLiteral)
}

func (j *processingJob) subscribe() chan string {
	stageChannel := make(chan string, subscriberBuffer)
	j.mutex.Lock()
	defer j.mutex.Unlock()
	stageChannel <- j.currentStage
	if j.currentStage == stageDoneLiteral {
		close(stageChannel)
		return stageChannel
	}
	j.subscribers[stageChannel] = struct{}{}
	return stageChannel
}

func (j *processingJob) unsubscribe(stageChannel chan string) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	if _, ok := j.subscribers[stageChannel]; ok {
		delete(j.subscribers, stageChannel)
		close(stageChannel)
	}
}

func (j *processingJob) finishedBefore(cutoff time.Time) bool {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.resultJSON != nil && j.finishedAt.Before(cutoff)
}

func (j *processingJob) snapshot() (string, []byte) {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.currentStage, j.resultJSON
}

type Server struct {
	booker      Booker
	baseContext context.Context
	jobsMutex   sync.RWMutex
	jobs        map[string]*processingJob
	running     sync.WaitGroup
	retention   time.Duration
	now         func() time.Time
}

// NewServer runs jobs under ctx so they outlive the request that started them.
func NewServer(ctx context.Context, booker Booker) *Server {
	return &Server{
		booker:      booker,
		baseContext: ctx,
		jobs:        map[string]*processingJob{},
		retention:   defaultJobRetention,
		now:         time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	httpMux := http.NewServeMux()
	httpMux.HandleFunc("POST /check", s.checkHandler)
	httpMux.HandleFunc("POST /book", s.bookHandler)
	httpMux.HandleFunc("GET /job/{id}/events", s.eventsHandler)
	httpMux.HandleFunc("GET /job/{id}/result", s.resultHandler)
	httpMux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	})
	return httpMux
}

// Wait blocks until every started job has finished.
func (s *Server) Wait() { s.running.Wait() }

func (s *Server) checkHandler(writer http.ResponseWriter, request *http.Request) {
	parsed, ok := decodeJobRequest(writer, request)
	if !ok {
		return
	}
	s.start(writer, func(ctx context.Context, job *processingJob) any {
		return s.booker.Check(ctx, parsed.Date, parsed.Time, job.stageOption())
	})
}

func (s *Server) bookHandler(writer http.ResponseWriter, request *http.Request) {
	parsed, ok := decodeJobRequest(writer, request)
	if !ok {
		return
	}
	s.start(writer, func(ctx context.Context, job *processingJob) any {
		return s.booker.Book(ctx, parsed.Date, parsed.Time, parsed.Court, job.stageOption())
	})
}

func decodeJobRequest(writer http.ResponseWriter, request *http.Request) (jobRequest, bool) {
	var parsed jobRequest
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxRequestBytes))
	if err := decoder.Decode(&parsed); err != nil {
		http.Error(writer, "invalid json body", http.StatusBadRequest)
		return jobRequest{}, false
	}
	if strings.TrimSpace(parsed.Date) == "" || strings.TrimSpace(parsed.Time) == "" {
		http.Error(writer, "date and time are required", http.StatusBadRequest)
		return jobRequest{}, false
	}
	return parsed, true
}

func (s *Server) start(writer http.ResponseWriter, work func(context.Context, *processingJob) any) {
	jobIdentifier := uuid.NewString()
	jobInstance := newProcessingJob()

	s.jobsMutex.Lock()
	s.evictFinished()
	s.jobs[jobIdentifier] = jobInstance
	s.jobsMutex.Unlock()

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		result := work(s.baseContext, jobInstance)
		jobInstance.finish(result, s.now())
		log.L().Info("job_done", zap.String("job", jobIdentifier))
	}()

	log.L().Info("job_started", zap.String("job", jobIdentifier))
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(writer).Encode(map[string]string{"jobID": jobIdentifier})
}

// evictFinished drops jobs that finished more than retention ago. The caller holds jobsMutex.
func (s *Server) evictFinished() {
	cutoff := s.now().Add(-s.retention)
	for jobIdentifier, jobInstance := range s.jobs {
		if jobInstance.finishedBefore(cutoff) {
			delete(s.jobs, jobIdentifier)
			log.L().Debug("job_evicted", zap.String("job", jobIdentifier))
		}
	}
}

func (s *Server) lookup(jobID string) (*processingJob, bool) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()
	jobInstance, exists := s.jobs[jobID]
	return jobInstance, exists
}

func (s *Server) eventsHandler(writer http.ResponseWriter, request *http.Request) {
	jobInstance, exists := s.lookup(request.PathValue("id"))
	if !exists {
		http.NotFound(writer, request)
		return
	}

	flusher, ok := writer.(http.Flusher)
	if !ok {
		http.Error(writer, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("Connection", "keep-alive")

	stageChannel := jobInstance.subscribe()
	defer jobInstance.unsubscribe(stageChannel)

	jsonEncoder := json.NewEncoder(writer)
	for {
		select {
		case <-request.Context().Done():
			return
		case stage, open := <-stageChannel:
			if !open {
				return
			}
			_, _ = writer.Write([]byte("data: "))
			_ = jsonEncoder.Encode(map[string]string{"stage": stage})
			_, _ = writer.Write([]byte("\n"))
			flusher.Flush()
			if stage == stageDoneLiteral {
				return
			}
		}
	}
}

func (s *Server) resultHandler(writer http.ResponseWriter, request *http.Request) {
	jobInstance, exists := s.lookup(request.PathValue("id"))
	if !exists {
		http.NotFound(writer, request)
		return
	}
	stage, resultJSON := jobInstance.snapshot()
	writer.Header().Set("Content-Type", "application/json")
	if resultJSON == nil {
		writer.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(writer).Encode(map[string]string{"stage": stage})
		return
	}
	_, _ = writer.Write(resultJSON)
}
