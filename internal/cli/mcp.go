package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/marcelocantos/xsh/internal/pipeline"
)

// MCPServer exposes the shell as an MCP tool server.
type MCPServer struct {
	shell *Shell
	// Chains share the process working directory, so calls run one at a time.
	mu sync.Mutex
}

// NewMCPServer wraps s for MCP use.
func NewMCPServer(s *Shell) *MCPServer {
	return &MCPServer{shell: s}
}

// Server builds the MCP server with the run_pipeline tool registered.
func (m *MCPServer) Server(version string) *server.MCPServer {
	s := server.NewMCPServer("xsh", version, server.WithToolCapabilities(false))
	tool := mcp.NewTool("run_pipeline",
		mcp.WithDescription("Run a command line of the form `a | b | c > file` and return its output and exit status. "+
			"Stages are split on whitespace; only | and a trailing > are recognised. Builtins: cd, pwd, exit."),
		mcp.WithString("line",
			mcp.Required(),
			mcp.Description("The command line to run"),
		),
	)
	s.AddTool(tool, m.handleRun)
	return s
}

// Serve runs the MCP server over stdio until the client disconnects.
func (m *MCPServer) Serve(version string) error {
	return server.ServeStdio(m.Server(version))
}

func (m *MCPServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	line, err := req.RequireString("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, status, err := m.run(ctx, line)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s\n%v", out, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s[exit status %d]", out, status)), nil
}

// run executes line with empty stdin and captured output. The returned error
// is set only for syntax and fatal failures.
func (m *MCPServer) run(ctx context.Context, line string) (string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stdout, stderr bytes.Buffer
	status, _, err := m.shell.Exec(ctx, line, strings.NewReader(""), &stdout, &stderr)

	var out strings.Builder
	out.Write(stdout.Bytes())
	if stderr.Len() > 0 {
		out.WriteString("[stderr]\n")
		out.Write(stderr.Bytes())
	}
	var fatal *pipeline.FatalError
	if errors.Is(err, pipeline.ErrSyntax) || errors.As(err, &fatal) {
		return out.String(), status, err
	}
	return out.String(), status, nil
}
