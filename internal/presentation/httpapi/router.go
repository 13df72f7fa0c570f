// Package httpapi exposes the scanner over HTTP: observable state, capture
// controls, the preview frame and the live event stream.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rolfea/book-buddy/internal/application"
	"github.com/rolfea/book-buddy/internal/domain"
)

// Scanner is the part of application.ScannerService the API drives
type Scanner interface {
	Open(ctx context.Context) error
	StartCapture() error
	StopCapture() error
	ResetSession() error
	Snapshot() domain.ScannerStatus
	Records() []domain.ScanRecord
	LatestFrame() *domain.Frame
}

// Books is the book lookup view
type Books interface {
	Books() []domain.Book
	Failures() map[string]string
}

// API holds the handler dependencies
type API struct {
	scanner Scanner
	books   Books
	events  http.Handler
	logger  application.Logger
}

// NewRouter builds the routes. books and events may be nil.
func NewRouter(scanner Scanner, books Books, events http.Handler, logger application.Logger) *mux.Router {
	api := &API{
		scanner: scanner,
		books:   books,
		events:  events,
		logger:  logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/state", api.GetStateHandler).Methods("GET")
	s.HandleFunc("/records", api.GetRecordsHandler).Methods("GET")
	s.HandleFunc("/books", api.GetBooksHandler).Methods("GET")
	s.HandleFunc("/frame.jpg", api.GetFrameHandler).Methods("GET")
	s.HandleFunc("/capture/{action:start|stop}", api.CaptureHandler).Methods("POST")
	s.HandleFunc("/session/reset", api.ResetSessionHandler).Methods("POST")
	s.HandleFunc("/camera/retry", api.RetryCameraHandler).Methods("POST")

	if events != nil {
		r.Handle("/ws/events", events)
	}

	return r
}
