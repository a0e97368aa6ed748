package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pesatrack/backend/internal/models"
)

type parseResult struct {
	Message string                    `json:"message"`
	Parsed  *models.ParsedTransaction `json:"parsed,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

func loadMessages(path string) ([]string, error) {
	if path == "-" {
		return readMessages(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readMessages(f)
}

// readMessages returns one message per line, or per blank-line separated block when the
// input contains blank lines so that multi-line messages stay whole.
func readMessages(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	blocks := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blocks = true
			break
		}
	}

	var messages []string
	if !blocks {
		for _, l := range lines {
			messages = append(messages, strings.TrimSpace(l))
		}
		return messages, nil
	}

	var current []string
	flush := func() {
		if len(current) > 0 {
			messages = append(messages, strings.Join(current, " "))
			current = nil
		}
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		current = append(current, strings.TrimSpace(l))
	}
	flush()
	return messages, nil
}

func parseFallback(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
