package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ArtifactWriteToolName is the registered name of the artifact writer.
const ArtifactWriteToolName = "write_artifact"

// ArtifactReadToolName is the registered name of the artifact reader.
const ArtifactReadToolName = "read_artifact"

type artifactWriteArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type artifactReadArgs struct {
	Path string `json:"path"`
}

// NewArtifactWriteTool builds the tool agents use to publish a shared
// artifact under the task's artifact map.
func NewArtifactWriteTool(artifacts *ArtifactMap) *Tool {
	return &Tool{
		Name:        ArtifactWriteToolName,
		Description: "Write a named artifact visible to the whole task. Overwrites any previous version at the same path.",
		Schema: ObjectSchema(map[string]Property{
			"path":    {Type: "string", Description: "Logical artifact path, e.g. notes/summary.md"},
			"content": {Type: "string", Description: "Artifact body"},
		}, "path", "content"),
		Effect: EffectMutating,
		Handler: func(ctx context.Context, call Call) Result {
			var args artifactWriteArgs
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return Errorf("invalid_arguments", "invalid write_artifact arguments: %v", err)
			}
			if strings.TrimSpace(args.Path) == "" {
				return Errorf("invalid_arguments", "write_artifact requires a path")
			}
			artifacts.Put(args.Path, args.Content, call.AgentID)
			return Result{Content: fmt.Sprintf("artifact %s written (%d bytes)", args.Path, len(args.Content))}
		},
	}
}

// NewArtifactReadTool builds the tool agents use to read a shared artifact.
func NewArtifactReadTool(artifacts *ArtifactMap) *Tool {
	return &Tool{
		Name:        ArtifactReadToolName,
		Description: "Read a named artifact previously written by any agent on this task.",
		Schema: ObjectSchema(map[string]Property{
			"path": {Type: "string", Description: "Logical artifact path"},
		}, "path"),
		Effect:      EffectPure,
		Independent: true,
		Handler: func(ctx context.Context, call Call) Result {
			var args artifactReadArgs
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return Errorf("invalid_arguments", "invalid read_artifact arguments: %v", err)
			}
			a, ok := artifacts.Get(args.Path)
			if !ok {
				return Errorf("not_found", "no artifact at %s", args.Path)
			}
			return Result{Content: a.Content}
		},
	}
}
