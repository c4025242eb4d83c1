package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Case is one receipt with the points it must score.
type Case struct {
	Name    string          `json:"name"`
	Points  int64           `json:"points"`
	Receipt json.RawMessage `json:"receipt"`
}

// yamlCase mirrors Case for YAML files; the receipt is re-encoded as JSON.
type yamlCase struct {
	Name    string         `yaml:"name"`
	Points  int64          `yaml:"points"`
	Receipt map[string]any `yaml:"receipt"`
}

// Outcome is the result of replaying one case.
type Outcome struct {
	Case   Case
	ID     string
	Points int64
	Err    error
}

// Passed reports whether the server scored the case as expected.
func (o Outcome) Passed() bool {
	return o.Err == nil && o.Points == o.Case.Points
}

// Metrics tracks replay results.
type Metrics struct {
	TotalProcessed   int64
	TotalPassed      int64
	TotalMismatched  int64
	TotalErrors      int64
	ProcessingTimeMs int64
}

func checkHealth(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readCases loads a case file; .yaml and .yml are decoded as YAML, anything
// else as JSON.
func readCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cases []Case
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cases, err = decodeYAMLCases(data)
	default:
		err = json.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, c := range cases {
		if len(c.Receipt) == 0 || string(c.Receipt) == "null" {
			return nil, fmt.Errorf("case %d (%s) has no receipt", i, c.Name)
		}
	}
	return cases, nil
}

func decodeYAMLCases(data []byte) ([]Case, error) {
	var raw []yamlCase
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	cases := make([]Case, len(raw))
	for i, c := range raw {
		cases[i] = Case{Name: c.Name, Points: c.Points}
		if c.Receipt == nil {
			continue
		}
		receipt, err := json.Marshal(c.Receipt)
		if err != nil {
			return nil, fmt.Errorf("case %d (%s): %w", i, c.Name, err)
		}
		cases[i].Receipt = receipt
	}
	return cases, nil
}

func expand(cases []Case, repeat int) []Case {
	if repeat <= 1 {
		return cases
	}
	out := make([]Case, 0, len(cases)*repeat)
	for i := 0; i < repeat; i++ {
		out = append(out, cases...)
	}
	return out
}

type replayer struct {
	baseURL string
	workers int
	verbose bool
	out     io.Writer
}

func (r *replayer) run(cases []Case) (*Metrics, []Outcome) {
	numWorkers := max(r.workers, 1)

	metrics := &Metrics{}
	var mu sync.Mutex
	var failures []Outcome

	work := make(chan Case, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				outcome := replayCase(client, r.baseURL, c)
				atomic.AddInt64(&metrics.ProcessingTimeMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				switch {
				case outcome.Err != nil:
					atomic.AddInt64(&metrics.TotalErrors, 1)
				case outcome.Passed():
					atomic.AddInt64(&metrics.TotalPassed, 1)
				default:
					atomic.AddInt64(&metrics.TotalMismatched, 1)
				}

				mu.Lock()
				if !outcome.Passed() {
					failures = append(failures, outcome)
				}
				if r.verbose {
					status := "ok  "
					if !outcome.Passed() {
						status = "FAIL"
					}
					fmt.Fprintf(r.out, "%s %-30s expected %4d got %4d %s\n", status, c.Name, c.Points, outcome.Points, outcome.ID)
				}
				mu.Unlock()
			}
		}()
	}

	for _, c := range cases {
		work <- c
	}
	close(work)
	wg.Wait()

	return metrics, failures
}

// replayCase submits one receipt and reads back its points.
func replayCase(client *http.Client, baseURL string, c Case) Outcome {
	out := Outcome{Case: c}

	resp, err := client.Post(baseURL+"/receipts/process", "application/json", bytes.NewReader(c.Receipt))
	if err != nil {
		out.Err = err
		return out
	}
	var processed struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	err = json.NewDecoder(resp.Body).Decode(&processed)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		out.Err = fmt.Errorf("process: status %d: %s", resp.StatusCode, processed.Error)
		return out
	}
	if err != nil {
		out.Err = fmt.Errorf("process: %w", err)
		return out
	}
	out.ID = processed.ID

	resp, err = client.Get(baseURL + "/receipts/" + processed.ID + "/points")
	if err != nil {
		out.Err = err
		return out
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		out.Err = fmt.Errorf("points: status %d", resp.StatusCode)
		return out
	}

	var points struct {
		Points int64 `json:"points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		out.Err = fmt.Errorf("points: %w", err)
		return out
	}
	out.Points = points.Points
	return out
}

func printResults(w io.Writer, m *Metrics, failures []Outcome, duration time.Duration) {
	fmt.Fprintln(w, "\n+---------------------------------------------------------------+")
	fmt.Fprintln(w, "|                        REPLAY RESULTS                         |")
	fmt.Fprintln(w, "+---------------------------------------------------------------+")

	fmt.Fprintf(w, "\n   Processed:   %d\n", m.TotalProcessed)
	fmt.Fprintf(w, "   Passed:      %d\n", m.TotalPassed)
	fmt.Fprintf(w, "   Mismatched:  %d\n", m.TotalMismatched)
	fmt.Fprintf(w, "   Errors:      %d\n", m.TotalErrors)

	fmt.Fprintf(w, "\n   Duration:    %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		fmt.Fprintf(w, "   Avg Latency: %.2f ms\n", avgMs)
		fmt.Fprintf(w, "   Throughput:  %.2f receipts/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	if len(failures) > 0 {
		fmt.Fprintln(w, "\n   Failures:")
		for _, f := range failures {
			if f.Err != nil {
				fmt.Fprintf(w, "   - %s: %v\n", f.Case.Name, f.Err)
				continue
			}
			fmt.Fprintf(w, "   - %s: expected %d, got %d (id %s)\n", f.Case.Name, f.Case.Points, f.Points, f.ID)
		}
	}
	fmt.Fprintln(w)
}
