package rag

import (
	"context"
	"errors"
	"sync"
)

// errStreamClosed is returned by the producer's emit callback once the
// consumer has closed the stream, unwinding the underlying model call.
var errStreamClosed = errors.New("token stream closed by consumer")

// TokenStream delivers synthesis output token by token, pulled by the
// consumer. The producer runs in its own goroutine and is paced by the
// consumer's Next calls; an abandoned stream must be Closed or the producer
// goroutine blocks until the model finishes.
//
// Usage follows the bufio.Scanner pattern:
//
//	for stream.Next() {
//	    write(stream.Text())
//	}
//	if err := stream.Err(); err != nil { ... }
type TokenStream struct {
	tokens chan string
	cancel context.CancelFunc

	mu   sync.Mutex
	err  error
	done chan struct{}

	cur    string
	closed bool
}

// newTokenStream starts run in a goroutine and returns the stream its emit
// callback feeds. run's context is canceled when the stream is closed.
func newTokenStream(ctx context.Context, run func(ctx context.Context, emit func(token string) error) error) *TokenStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &TokenStream{
		tokens: make(chan string),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.tokens)
		err := run(ctx, func(token string) error {
			select {
			case s.tokens <- token:
				return nil
			case <-s.done:
				return errStreamClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, errStreamClosed) {
			// A consumer-initiated close also surfaces as a context
			// cancellation from the underlying call; neither is an error.
			select {
			case <-s.done:
			default:
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
		}
	}()

	return s
}

// Next advances to the next token, blocking until one is available. It
// returns false when the stream is exhausted, failed, or closed.
func (s *TokenStream) Next() bool {
	if s.closed {
		return false
	}
	token, ok := <-s.tokens
	if !ok {
		return false
	}
	s.cur = token
	return true
}

// Text returns the token read by the last successful call to Next.
func (s *TokenStream) Text() string {
	return s.cur
}

// Err returns the first error encountered by the producer, if any. Valid
// once Next has returned false. A consumer-initiated Close is not an error.
func (s *TokenStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream and releases the producer. Safe to call multiple
// times and after exhaustion.
func (s *TokenStream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	s.cancel()
	// Drain so a producer blocked on send observes done and exits.
	for range s.tokens {
	}
}
