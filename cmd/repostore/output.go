package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sagarc03/repostore"
)

// Formatter formats command results for output.
type Formatter interface {
	FormatExists(w io.Writer, uri, path string, exists bool) error
	FormatKeys(w io.Writer, uri string, keys []string) error
	FormatDeleteAll(w io.Writer, uri string, err error) error
	FormatHandles(w io.Writer, action string, handles []repostore.ContainerHandle) error
	FormatTeardown(w io.Writer, handles []repostore.ContainerHandle, err error) error
	FormatError(w io.Writer, err error) error
}

func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

func getFormatter() Formatter {
	return NewFormatter(jsonOutput, quiet)
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

func (f *HumanFormatter) FormatExists(w io.Writer, _, _ string, exists bool) error {
	_, err := fmt.Fprintln(w, exists)
	return err
}

func (f *HumanFormatter) FormatKeys(w io.Writer, _ string, keys []string) error {
	if len(keys) == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintln(w, "No objects found")
		}
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(w, k)
	}
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\n%d object(s)\n", len(keys))
	}
	return nil
}

func (f *HumanFormatter) FormatDeleteAll(w io.Writer, uri string, err error) error {
	var pf *repostore.PartialFailureError
	if errors.As(err, &pf) {
		_, _ = fmt.Fprintf(w, "Deleted %d object(s) under %s, %d failed:\n", pf.Deleted, uri, len(pf.Failed))
		for _, kerr := range pf.Failed {
			_, _ = fmt.Fprintf(w, "  Error: %s - %v\n", kerr.Key, kerr.Err)
		}
		return nil
	}
	if err != nil {
		return f.FormatError(w, err)
	}
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "Deleted: %s\n", uri)
	}
	return nil
}

func (f *HumanFormatter) FormatHandles(w io.Writer, action string, handles []repostore.ContainerHandle) error {
	if len(handles) == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintln(w, "No containers")
		}
		return nil
	}

	maxScheme := len("SCHEME")
	for _, h := range handles {
		maxScheme = max(maxScheme, len(h.Scheme))
	}

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "%-*s  %s\n", maxScheme, "SCHEME", strings.ToUpper(action))
		_, _ = fmt.Fprintf(w, "%s  %s\n", strings.Repeat("-", maxScheme), strings.Repeat("-", len(action)))
	}
	for _, h := range handles {
		_, _ = fmt.Fprintf(w, "%-*s  %s\n", maxScheme, h.Scheme, h.Name)
	}
	return nil
}

func (f *HumanFormatter) FormatTeardown(w io.Writer, handles []repostore.ContainerHandle, err error) error {
	failed := failedHandles(err)
	for _, h := range handles {
		if cerr, ok := failed[h]; ok {
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", h, cerr)
			continue
		}
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "Released: %s\n", h)
		}
	}
	if err != nil && len(failed) == 0 {
		return f.FormatError(w, err)
	}
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\n%d released, %d failed\n", len(handles)-len(failed), len(failed))
	}
	return nil
}

func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatExists(w io.Writer, uri, path string, exists bool) error {
	return writeJSON(w, struct {
		URI    string `json:"uri"`
		Path   string `json:"path"`
		Exists bool   `json:"exists"`
	}{uri, path, exists})
}

func (f *JSONFormatter) FormatKeys(w io.Writer, uri string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	return writeJSON(w, struct {
		URI  string   `json:"uri"`
		Keys []string `json:"keys"`
	}{uri, keys})
}

func (f *JSONFormatter) FormatDeleteAll(w io.Writer, uri string, err error) error {
	type jsonFailure struct {
		Key   string `json:"key"`
		Error string `json:"error"`
	}
	out := struct {
		URI     string        `json:"uri"`
		Deleted *int          `json:"deleted,omitempty"`
		Failed  []jsonFailure `json:"failed,omitempty"`
		Error   string        `json:"error,omitempty"`
	}{URI: uri}

	var pf *repostore.PartialFailureError
	if errors.As(err, &pf) {
		out.Deleted = &pf.Deleted
		for _, kerr := range pf.Failed {
			out.Failed = append(out.Failed, jsonFailure{Key: kerr.Key, Error: kerr.Err.Error()})
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return writeJSON(w, out)
}

func (f *JSONFormatter) FormatHandles(w io.Writer, action string, handles []repostore.ContainerHandle) error {
	if handles == nil {
		handles = []repostore.ContainerHandle{}
	}
	return writeJSON(w, map[string]any{action: handles})
}

func (f *JSONFormatter) FormatTeardown(w io.Writer, handles []repostore.ContainerHandle, err error) error {
	type jsonResult struct {
		repostore.ContainerHandle
		Released bool   `json:"released"`
		Error    string `json:"error,omitempty"`
	}

	failed := failedHandles(err)
	out := struct {
		Results []jsonResult `json:"results"`
		Error   string       `json:"error,omitempty"`
	}{Results: make([]jsonResult, len(handles))}

	for i, h := range handles {
		r := jsonResult{ContainerHandle: h, Released: true}
		if cerr, ok := failed[h]; ok {
			r.Released = false
			r.Error = cerr.Error()
		}
		out.Results[i] = r
	}
	if err != nil {
		out.Error = err.Error()
	}
	return writeJSON(w, out)
}

func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return writeJSON(w, struct {
		Error string `json:"error"`
	}{err.Error()})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func failedHandles(err error) map[repostore.ContainerHandle]error {
	failed := make(map[repostore.ContainerHandle]error)
	var te *repostore.TeardownError
	if errors.As(err, &te) {
		for _, cerr := range te.Failures {
			failed[cerr.Handle] = cerr.Err
		}
	}
	return failed
}
