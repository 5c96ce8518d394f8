package session

import (
	"errors"
	"fmt"
	"net/url"
)

// ConnState is the lifecycle state of the controller's connection.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnOpen         ConnState = "open"
	ConnClosed       ConnState = "closed"
)

var (
	// ErrTransport marks a failed dial, write or an unexpected close. It is
	// fatal to the session.
	ErrTransport = errors.New("transport error")
	// ErrInvalidInput marks a request refused locally without any traffic.
	ErrInvalidInput = errors.New("invalid input")
)

// ThinkingMessage is logged locally as soon as a session starts.
const ThinkingMessage = "🤔 Thinking about research questions for the task..."

// Endpoint derives the WebSocket URL from the page URL: same host, the page
// path with "ws" appended, and ws or wss mirroring http or https.
func Endpoint(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("page url has no host: %s", pageURL)
	}

	var scheme string
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported page url scheme: %q", u.Scheme)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + u.Host + path + "ws", nil
}
