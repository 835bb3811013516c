// Package filesystem implements §4.D.2: ls/read_file/write_file/edit_file/
// glob/grep and the conditional execute tool, each a thin translator over a
// backend.Backend, plus the context-offload policy that spills oversized
// tool results to a synthetic path.
//
// Grounded on tools/extra_tools.go's tool shapes (one FunctionTool per
// filesystem operation, a request/response struct per tool); the offload
// behavior is grounded on other_examples' wick_deep_agent FilesystemHook.
// WrapToolCall, which evicts any tool result over a size threshold to a
// head+tail summary — adapted here to spill the full payload to
// /tool_outputs/<call_id> and return a stub instead of truncating inline,
// per this harness's spec.
package filesystem

import (
	"context"
	"fmt"
	"time"

	"github.com/package-register/deepagent-go/dagent/backend"
	"github.com/package-register/deepagent-go/dagent/state"
	"github.com/package-register/deepagent-go/dagent/tool"
)

const defaultPreviewBytes = 200

// Middleware contributes the filesystem tool surface and offloads
// oversized tool results (from any tool, not only its own) to
// /tool_outputs/<call_id>.
type Middleware struct {
	backend      backend.Backend
	offloadBytes int
	previewBytes int
	tools        []tool.Tool
}

// New builds the filesystem middleware over b. offloadBytes is the
// threshold above which a tool result is spilled to disk; 0 selects the
// harness default (config.Default().OffloadThresholdBytes).
func New(b backend.Backend, offloadBytes int) *Middleware {
	if offloadBytes <= 0 {
		offloadBytes = 10_000
	}
	m := &Middleware{backend: b, offloadBytes: offloadBytes, previewBytes: defaultPreviewBytes}
	m.tools = m.buildTools()
	return m
}

func (m *Middleware) Name() string       { return "filesystem" }
func (m *Middleware) Tools() []tool.Tool { return m.tools }

// AfterToolCall applies the context-offload policy uniformly: any tool
// result (not only this middleware's own) exceeding the configured
// threshold is written in full to /tool_outputs/<call_id> and replaced
// with a short stub (§4.D.2).
func (m *Middleware) AfterToolCall(ctx context.Context, s *state.AgentState, call state.ToolCall, result string) (string, error) {
	if len(result) <= m.offloadBytes {
		return result, nil
	}
	path := fmt.Sprintf("/tool_outputs/%s", call.ID)
	if err := m.backend.Write(ctx, path, []byte(result), true); err != nil {
		return result, err
	}
	preview := result
	if len(preview) > m.previewBytes {
		preview = preview[:m.previewBytes]
	}
	return fmt.Sprintf("%d bytes written to %s; preview: %s", len(result), path, preview), nil
}

type lsRequest struct {
	Path string `json:"path" jsonschema:"description=absolute directory path to list"`
}
type lsResponse struct {
	Entries []entryJSON `json:"entries"`
}
type entryJSON struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

type readFileRequest struct {
	Path   string `json:"path" jsonschema:"description=absolute file path to read"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=byte offset to start reading from"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=maximum bytes to read, 0 for no limit"`
}
type readFileResponse struct {
	Content string `json:"content"`
}

type writeFileRequest struct {
	Path          string `json:"path" jsonschema:"description=absolute file path to write"`
	Content       string `json:"content" jsonschema:"description=full file content"`
	CreateParents bool   `json:"create_parents,omitempty" jsonschema:"description=create missing parent directories"`
}
type writeFileResponse struct {
	BytesWritten int `json:"bytes_written"`
}

type editFileRequest struct {
	Path       string `json:"path" jsonschema:"description=absolute file path to edit"`
	OldString  string `json:"old_string" jsonschema:"description=exact text to replace"`
	NewString  string `json:"new_string" jsonschema:"description=replacement text"`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema:"description=replace every occurrence instead of requiring exactly one"`
}
type editFileResponse struct {
	Replacements int `json:"replacements"`
}

type globRequest struct {
	Pattern string `json:"pattern" jsonschema:"description=doublestar glob pattern, e.g. **/*.go"`
	Root    string `json:"root" jsonschema:"description=absolute root directory to search under"`
}
type globResponse struct {
	Paths []string `json:"paths"`
}

type grepRequest struct {
	Pattern         string `json:"pattern" jsonschema:"description=substring or pattern to search for"`
	Root            string `json:"root" jsonschema:"description=absolute root directory to search under"`
	Include         string `json:"include,omitempty" jsonschema:"description=Go regular expression matched against each file path, restricting which files are searched"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty"`
	MaxHits         int    `json:"max_hits,omitempty" jsonschema:"description=stop after this many matches, 0 for unlimited"`
}
type grepResponse struct {
	Hits []hitJSON `json:"hits"`
}
type hitJSON struct {
	Path   string `json:"path"`
	LineNo int    `json:"line_no"`
	Line   string `json:"line"`
}

type executeRequest struct {
	Command        string `json:"command" jsonschema:"description=shell command to run"`
	Cwd            string `json:"cwd,omitempty" jsonschema:"description=absolute working directory"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"description=kill the command after this many seconds, 0 for no timeout"`
}
type executeResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func (m *Middleware) buildTools() []tool.Tool {
	b := m.backend
	tools := []tool.Tool{
		tool.NewFunctionTool("ls", "List a directory's immediate entries.",
			func(ctx context.Context, req *lsRequest) (*lsResponse, error) {
				entries, err := b.LsInfo(ctx, req.Path)
				if err != nil {
					return nil, err
				}
				out := make([]entryJSON, len(entries))
				for i, e := range entries {
					out[i] = entryJSON{Name: e.Name, IsDir: e.IsDir, Size: e.Size}
				}
				return &lsResponse{Entries: out}, nil
			}),
		tool.NewFunctionTool("read_file", "Read a file's content, optionally a byte range.",
			func(ctx context.Context, req *readFileRequest) (*readFileResponse, error) {
				data, err := b.Read(ctx, req.Path, req.Offset, req.Limit)
				if err != nil {
					return nil, err
				}
				return &readFileResponse{Content: string(data)}, nil
			}),
		tool.NewFunctionTool("write_file", "Write (overwrite) a file's full content.",
			func(ctx context.Context, req *writeFileRequest) (*writeFileResponse, error) {
				if err := b.Write(ctx, req.Path, []byte(req.Content), req.CreateParents); err != nil {
					return nil, err
				}
				return &writeFileResponse{BytesWritten: len(req.Content)}, nil
			}),
		tool.NewFunctionTool("edit_file", "Replace an exact substring within a file.",
			func(ctx context.Context, req *editFileRequest) (*editFileResponse, error) {
				count, err := b.Edit(ctx, req.Path, req.OldString, req.NewString, req.ReplaceAll)
				if err != nil {
					return nil, err
				}
				return &editFileResponse{Replacements: count}, nil
			}),
		tool.NewFunctionTool("glob", "Find paths under root matching a doublestar pattern.",
			func(ctx context.Context, req *globRequest) (*globResponse, error) {
				paths, err := b.Glob(ctx, req.Pattern, req.Root)
				if err != nil {
					return nil, err
				}
				return &globResponse{Paths: paths}, nil
			}),
		tool.NewFunctionTool("grep", "Search file contents under root for a pattern.",
			func(ctx context.Context, req *grepRequest) (*grepResponse, error) {
				hits, err := b.Grep(ctx, req.Pattern, req.Root, req.Include, req.CaseInsensitive, req.MaxHits)
				if err != nil {
					return nil, err
				}
				out := make([]hitJSON, len(hits))
				for i, h := range hits {
					out[i] = hitJSON{Path: h.Path, LineNo: h.LineNo, Line: h.Line}
				}
				return &grepResponse{Hits: out}, nil
			}),
	}

	if exec, ok := backend.SupportsExecute(b); ok {
		tools = append(tools, tool.NewFunctionTool("execute", "Run a shell command, if the active backend supports it.",
			func(ctx context.Context, req *executeRequest) (*executeResponse, error) {
				timeout := time.Duration(req.TimeoutSeconds) * time.Second
				res, err := exec.Execute(ctx, req.Command, req.Cwd, timeout)
				if err != nil {
					return nil, err
				}
				return &executeResponse{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
			}))
	}

	return tools
}
