// Package memory records messaging calls instead of sending them.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/bing-daily-crawler/internal/bing"
)

// Post is one recorded call.
type Post struct {
	Method    string
	ChatID    string
	URL       string
	Text      string
	MessageID int64
}

// Sink implements bing.Sink for dry runs. Message IDs increase from 1.
type Sink struct {
	mu     sync.Mutex
	nextID int64
	posts  []Post
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) record(method, chatID, url, text string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.posts = append(s.posts, Post{Method: method, ChatID: chatID, URL: url, Text: text, MessageID: s.nextID})
	return s.nextID
}

// SendDocument records a document post.
func (s *Sink) SendDocument(_ context.Context, chatID, documentURL, caption string) (bing.ArchiveRef, error) {
	id := s.record("sendDocument", chatID, documentURL, caption)
	return bing.ArchiveRef{MessageID: id, FileID: fmt.Sprintf("memory-file-%d", id)}, nil
}

// SendMessage records a text post.
func (s *Sink) SendMessage(_ context.Context, chatID, text string) (int64, error) {
	return s.record("sendMessage", chatID, "", text), nil
}

// SendPhoto records a photo post.
func (s *Sink) SendPhoto(_ context.Context, chatID, photoURL, caption string) (bing.PhotoResult, error) {
	id := s.record("sendPhoto", chatID, photoURL, caption)
	return bing.PhotoResult{MessageID: id}, nil
}

// Posts returns a copy of the recorded calls.
func (s *Sink) Posts() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Post(nil), s.posts...)
}
