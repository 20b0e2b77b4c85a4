package host

import (
	"net/url"
	"sync"
)

// LaunchState is the page's addressable startup state: the query
// parameters the host client reads when it initializes. The token
// lifecycle manager rewrites it in place, no reload involved.
type LaunchState struct {
	mu     sync.Mutex
	values url.Values
}

// ParseLaunchState builds a LaunchState from a raw query string
// (without the leading '?').
func ParseLaunchState(rawQuery string) (*LaunchState, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return &LaunchState{values: values}, nil
}

func NewLaunchState() *LaunchState {
	return &LaunchState{values: url.Values{}}
}

func (l *LaunchState) Get(key string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values.Get(key)
}

func (l *LaunchState) Set(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values.Set(key, value)
}

// Encode returns the current state as a query string.
func (l *LaunchState) Encode() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values.Encode()
}
