// Package execution talks to the Piston code-execution service. The
// sandbox is opaque: one request, one result, no retries. Failures are
// shown inline in the output pane and never touch the room session.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://emkc.org/api/v2/piston"

// Result is the combined outcome of the compile and run phases.
type Result struct {
	Stdout   string
	Stderr   string
	Output   string
	ExitCode int
}

// Runtime is one language/version pair the service can execute.
type Runtime struct {
	Language string `json:"language"`
	Version  string `json:"version"`
}

// languageMap translates editor language ids to Piston's names.
var languageMap = map[string]string{
	"javascript": "javascript",
	"python":     "python",
	"java":       "java",
	"cpp":        "c++",
}

var fileNames = map[string]string{
	"javascript": "script.js",
	"python":     "script.py",
	"java":       "Main.java",
	"cpp":        "main.cpp",
}

// Client executes code through Piston.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an execution client. An empty baseURL selects the
// public Piston instance.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type phaseResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   int    `json:"code"`
}

type executeResponse struct {
	Compile *phaseResult `json:"compile"`
	Run     *phaseResult `json:"run"`
	Message string       `json:"message"`
}

// Execute runs source in the given language with optional stdin. Compile
// and run phases are merged into one Result, compiler output first.
func (c *Client) Execute(ctx context.Context, language, source, stdin string) (*Result, error) {
	pistonLanguage := language
	if mapped, ok := languageMap[language]; ok {
		pistonLanguage = mapped
	}
	fileName := fileNames[language]
	if fileName == "" {
		fileName = "script.txt"
	}

	payload := map[string]any{
		"language": pistonLanguage,
		"version":  "*",
		"files": []map[string]string{
			{"name": fileName, "content": source},
		},
		"stdin":                stdin,
		"args":                 []string{},
		"compile_timeout":      10000,
		"run_timeout":          3000,
		"compile_memory_limit": -1,
		"run_memory_limit":     -1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("execution: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("execution: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execution: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("execution: read response: %w", err)
	}

	var decoded executeResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("execution: decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if decoded.Message != "" {
			return nil, fmt.Errorf("execution: %s", decoded.Message)
		}
		return nil, fmt.Errorf("execution: request failed (status %d)", resp.StatusCode)
	}

	result := &Result{}
	for _, phase := range []*phaseResult{decoded.Compile, decoded.Run} {
		if phase == nil {
			continue
		}
		result.Stdout += phase.Stdout
		result.Stderr += phase.Stderr
		result.Output += phase.Output
	}
	if decoded.Run != nil {
		result.ExitCode = decoded.Run.Code
	}
	if result.Output == "" {
		result.Output = result.Stdout
	}
	if result.Output == "" {
		result.Output = result.Stderr
	}
	return result, nil
}

// Runtimes lists the languages the service can execute.
func (c *Client) Runtimes(ctx context.Context) ([]Runtime, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runtimes", nil)
	if err != nil {
		return nil, fmt.Errorf("execution: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execution: %w", err)
	}
	defer resp.Body.Close()

	var runtimes []Runtime
	if err := json.NewDecoder(resp.Body).Decode(&runtimes); err != nil {
		return nil, fmt.Errorf("execution: decode runtimes: %w", err)
	}
	return runtimes, nil
}
