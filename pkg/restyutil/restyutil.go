// Package restyutil dumps the http exchanges of a resty client, which is the
// quickest way to see what changed when a scraper stops matching a page.
package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// FilesystemOutput writes every exchange to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears dir and recreates it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write exchange file", "id", id, "err", err)
	}
}

// MemoryOutput keeps exchanges in memory.
type MemoryOutput struct {
	mu        sync.Mutex
	Exchanges map[string]string
}

func NewMemoryOutput() *MemoryOutput {
	return &MemoryOutput{Exchanges: map[string]string{}}
}

func (o *MemoryOutput) Write(id string, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Exchanges[id] = contents
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func exchangeId(n uint64, res *resty.Response) string {
	path := "root"
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		trimmed := strings.Trim(res.RawResponse.Request.URL.Path, "/")
		if trimmed != "" {
			path = unsafePathChars.ReplaceAllString(trimmed, "_")
		}
	}
	return fmt.Sprintf("%03d-%s-%s.txt", n, strings.ToLower(res.Request.Method), path)
}

// DumpExchanges writes every completed exchange of client to output. It is a
// no-op when output is nil.
func DumpExchanges(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		n := atomic.AddUint64(&counter, 1)
		output.Write(exchangeId(n, res), FormatExchange(res))
		return nil
	})
}
