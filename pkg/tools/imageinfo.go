package tools

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/llmspell/llmspell/pkg/errs"
	"github.com/llmspell/llmspell/pkg/resource"
	"github.com/llmspell/llmspell/pkg/sandbox"
	"github.com/llmspell/llmspell/pkg/tool"
)

const maxImageInspectBytes = 20 << 20

var imageOperations = map[string]bool{"info": true, "transform": true}

// ImageInfoTool performs metadata extraction and format inference only, per
// spec.md §4.3: "transformation operations return a deterministic 'not
// implemented' application error, not an engine error." The std image
// package's format sniffing covers the metadata-only scope this tool is
// restricted to; nothing in the example pack carries an image-processing
// library, so there is no third-party decoder to wire (see DESIGN.md).
type ImageInfoTool struct {
	sb *sandbox.FileSandbox
}

func NewImageInfoTool(sb *sandbox.FileSandbox) *ImageInfoTool {
	return &ImageInfoTool{sb: sb}
}

func (t *ImageInfoTool) Metadata() tool.Metadata {
	return tool.Metadata{Name: "image_processor", Version: "1.0.0"}
}

func (t *ImageInfoTool) Schema() tool.Schema {
	return tool.Schema{Parameters: []tool.Parameter{
		{Name: "operation", Type: tool.TypeEnum, Required: true, Constraint: tool.Constraint{Enum: []string{"info", "transform"}}},
		{Name: "path", Type: tool.TypeString, Required: true},
	}}
}

func (t *ImageInfoTool) Category() tool.Category           { return tool.CategoryMedia }
func (t *ImageInfoTool) SecurityLevel() tool.SecurityLevel { return tool.SecurityRestricted }
func (t *ImageInfoTool) SecurityRequirements() []string    { return []string{"filesystem"} }

func (t *ImageInfoTool) ResourceLimits() resource.Limits {
	return resource.Limits{OperationTimeout: 2 * time.Second, MaxOutputBytes: maxImageInspectBytes}
}

func (t *ImageInfoTool) ValidateInput(input tool.Input) error {
	return tool.ValidateAgainstSchema(t.Schema(), input)
}

type imageParams struct {
	Operation string `json:"operation"`
	Path      string `json:"path"`
}

func (t *ImageInfoTool) Execute(_ *tool.Context, input tool.Input) (tool.Output, error) {
	var p imageParams
	if err := decodeInput(input, &p); err != nil {
		return errorOutput("", err), nil
	}
	if !imageOperations[p.Operation] {
		return errorOutput(p.Operation, errs.Validation("operation", "unknown image operation")), nil
	}
	if p.Operation == "transform" {
		return errorOutput(p.Operation, errs.NotImplemented("image transformation")), nil
	}

	resolved, err := t.sb.ValidatePath(p.Path)
	if err != nil {
		return errorOutput(p.Operation, err), nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return errorOutput(p.Operation, errs.Storage(err)), nil
	}
	if info.Size() > maxImageInspectBytes {
		return errorOutput(p.Operation, errs.Resource("image_inspect_bytes")), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return errorOutput(p.Operation, errs.Storage(err)), nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return errorOutput(p.Operation, errs.Validation("path", "not a recognized image format")), nil
	}
	return tool.Output{Success: true, Operation: p.Operation, Message: "image metadata extracted", Result: map[string]any{
		"format": format, "width": cfg.Width, "height": cfg.Height, "size_bytes": info.Size(),
	}}, nil
}
