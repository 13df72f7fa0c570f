package application

import (
	"context"
	"errors"
	"sync"

	"github.com/rolfea/book-buddy/internal/domain"
)

// BookLookup resolves new codes to book metadata on a small worker pool.
// Lookup failures are per code and never stop the pool.
type BookLookup struct {
	catalog Catalog
	logger  Logger
	workers int

	queue chan string
	wg    sync.WaitGroup

	mutex     sync.Mutex
	requested map[string]struct{} // session/code pairs already queued
	books     []domain.Book
	failures  map[string]string
	closed    bool
}

// NewBookLookup creates a lookup with the given pool and queue sizes
func NewBookLookup(catalog Catalog, workers, queueSize int, logger Logger) *BookLookup {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &BookLookup{
		catalog:   catalog,
		logger:    logger,
		workers:   workers,
		queue:     make(chan string, queueSize),
		requested: make(map[string]struct{}),
		failures:  make(map[string]string),
	}
}

// Start launches the workers. They stop when ctx is cancelled or Close is called.
func (l *BookLookup) Start(ctx context.Context) {
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.worker(ctx)
	}
}

// HandleEvent queues the new codes of a scan event. It never blocks: when the
// queue is full the code is dropped with a warning.
func (l *BookLookup) HandleEvent(event domain.ScanEvent) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return
	}

	for _, code := range event.Codes {
		key := event.SessionID + "/" + code
		if _, ok := l.requested[key]; ok {
			continue
		}

		select {
		case l.queue <- code:
			l.requested[key] = struct{}{}
		default:
			l.logger.Warn("Lookup queue full, dropping %s", code)
		}
	}
}

// Books returns the resolved books in resolution order
func (l *BookLookup) Books() []domain.Book {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	books := make([]domain.Book, len(l.books))
	copy(books, l.books)
	return books
}

// Failures returns the last lookup error per code
func (l *BookLookup) Failures() map[string]string {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	failures := make(map[string]string, len(l.failures))
	for code, reason := range l.failures {
		failures[code] = reason
	}
	return failures
}

// Close stops accepting codes and waits for the queued ones to be resolved
func (l *BookLookup) Close() {
	l.mutex.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mutex.Unlock()

	l.wg.Wait()
}

func (l *BookLookup) worker(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case code, ok := <-l.queue:
			if !ok {
				return
			}
			l.resolve(ctx, code)
		}
	}
}

func (l *BookLookup) resolve(ctx context.Context, code string) {
	book, err := l.catalog.Lookup(ctx, code)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err != nil {
		l.failures[code] = err.Error()
		if errors.Is(err, domain.ErrBookNotFound) {
			l.logger.Info("No book found for %s", code)
		} else {
			l.logger.Warn("Book lookup for %s failed: %v", code, err)
		}
		return
	}

	delete(l.failures, code)
	if book.ISBN == "" {
		book.ISBN = code
	}
	l.books = append(l.books, book)
	l.logger.Info("Resolved %s: %q by %s (%d)", code, book.Title, book.Author, book.PublishedYear)
}
