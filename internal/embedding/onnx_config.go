package embedding

import (
	"fmt"
	"os"
)

// ONNXConfig describes a sentence-embedding model exported to ONNX with BERT-style inputs.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	// OutputName is the pooled output tensor name; defaults to "output".
	OutputName string
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string
}

func (c *ONNXConfig) validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("onnx model path is required")
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("onnx model not found: %w", err)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	if c.MaxTokens <= 2 {
		c.MaxTokens = 256
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	return nil
}
