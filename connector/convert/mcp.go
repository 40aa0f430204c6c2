package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/tool"
)

// MCPOptions configures the MCP document converter.
type MCPOptions struct {
	// ToolName is the conversion tool exposed by the server.
	ToolName string
	// ArgumentKey is the parameter the server expects the source reference
	// under (markdownify-style servers use "uri").
	ArgumentKey string
	// ConnectTimeout bounds the initial stdio handshake.
	ConnectTimeout time.Duration
	// Environment is added to the spawned server process.
	Environment map[string]string
}

// MCPConverter converts documents (pdf, docx, audio transcripts) to markdown
// through a stdio MCP server such as markdownify.
type MCPConverter struct {
	session     *sdkmcp.ClientSession
	toolName    string
	argumentKey string
}

// NewMCPConverter spawns the given server command and connects over stdio.
// Callers own the converter lifecycle and must Close it.
func NewMCPConverter(ctx context.Context, command []string, optFns ...func(o *MCPOptions)) (*MCPConverter, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty server command")
	}

	opts := MCPOptions{
		ToolName:       "convert_to_markdown",
		ArgumentKey:    "uri",
		ConnectTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "studymesh",
		Version: "1.0.0",
	}, nil)

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = os.Environ()
	for k, v := range opts.Environment {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	session, err := client.Connect(connectCtx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to conversion server: %w", err)
	}

	return &MCPConverter{
		session:     session,
		toolName:    opts.ToolName,
		argumentKey: opts.ArgumentKey,
	}, nil
}

// Convert implements Converter by calling the server's conversion tool.
func (c *MCPConverter) Convert(ctx context.Context, ref string) (*Document, error) {
	if c.session == nil {
		return nil, fmt.Errorf("conversion server not connected")
	}

	result, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      c.toolName,
		Arguments: map[string]any{c.argumentKey: ref},
	})
	if err != nil {
		return nil, fmt.Errorf("conversion call failed: %w", err)
	}

	if result.IsError {
		for _, content := range result.Content {
			if textContent, ok := content.(*sdkmcp.TextContent); ok {
				return nil, fmt.Errorf("conversion error: %s", textContent.Text)
			}
		}
		return nil, fmt.Errorf("conversion failed")
	}

	var out strings.Builder
	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			out.WriteString(textContent.Text)
		}
	}

	return &Document{
		ContentMarkdown: out.String(),
		Metadata:        map[string]any{"source": ref},
	}, nil
}

// Close shuts down the server session.
func (c *MCPConverter) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// NewDocumentTool exposes a document converter as an agent tool returning
// {content_markdown, metadata}.
func NewDocumentTool(c Converter, n *tool.Normalizer) tool.Tool {
	ft := tool.NewFunctionTool(
		"convert_document",
		"Convert a document (pdf, docx, audio) to markdown study material.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"uri": map[string]any{
					"type":        "string",
					"description": "Path or URI of the document to convert",
				},
			},
			"required": []string{"uri"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			ref, _ := args["uri"].(string)
			doc, err := c.Convert(toolCtx.Context(), ref)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"content_markdown": doc.ContentMarkdown,
				"metadata":         doc.Metadata,
			}, nil
		},
	)

	if n == nil {
		return ft
	}
	return tool.Normalized(ft, n)
}
