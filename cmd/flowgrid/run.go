package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/flowgrid/flowgrid"
	"github.com/flowgrid/flowgrid/nodes"
	"github.com/flowgrid/flowgrid/types"
	"go.uber.org/zap"
)

func runOnce(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "Path to the workflow JSON document (required)")
	inputPath := fs.String("input", "", "Path to a JSON object used as run input")
	openaiKey := fs.String("openai-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key for ai nodes")
	anthropicKey := fs.String("anthropic-key", os.Getenv("ANTHROPIC_API_KEY"), "Anthropic API key for ai nodes")
	verbose := fs.Bool("v", false, "Log node progress to stderr")
	parseFlags(fs, args)

	workflow := loadWorkflow(*workflowPath)
	input := loadInput(*inputPath)

	opts := []flowgrid.Option{}
	if *openaiKey != "" {
		opts = append(opts, flowgrid.WithOpenAI(*openaiKey))
	}
	if *anthropicKey != "" {
		opts = append(opts, flowgrid.WithAnthropic(*anthropicKey))
	}
	if *verbose {
		opts = append(opts, flowgrid.WithLogCallback(func(log *types.ExecutionLog) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", log.Status, log.NodeName)
		}))
	}

	fg, err := flowgrid.New(opts...)
	if err != nil {
		fail("Failed to build engine: %v", err)
	}

	record := fg.Run(context.Background(), workflow, input)
	printRecord(record)
	if !record.Success {
		os.Exit(1)
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	workflowPath := fs.String("workflow", "", "Path to the workflow JSON document (required)")
	parseFlags(fs, args)

	workflow := loadWorkflow(*workflowPath)
	if err := workflow.Validate(); err != nil {
		fail("Invalid workflow: %v", err)
	}

	registry := nodes.DefaultRegistry(nodes.Deps{Logger: zap.NewNop()})
	clean := true
	for _, node := range workflow.Nodes {
		handler, err := registry.Get(node.Type)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", node.ID, err)
			clean = false
			continue
		}
		if result := handler.ValidateConfig(node.Config); !result.Valid {
			for _, msg := range result.Errors {
				fmt.Fprintf(os.Stderr, "%s: %s\n", node.ID, msg)
			}
			clean = false
		}
	}
	if !clean {
		os.Exit(1)
	}
	fmt.Println("workflow is valid")
}

func loadWorkflow(path string) *types.Workflow {
	if path == "" {
		fail("--workflow is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fail("Failed to read workflow: %v", err)
	}
	workflow, err := types.ImportWorkflow(data)
	if err != nil {
		fail("Failed to parse workflow: %v", err)
	}
	return workflow
}

func loadInput(path string) map[string]any {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fail("Failed to read input: %v", err)
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		fail("Failed to parse input: %v", err)
	}
	return input
}

func printRecord(record *types.ExecutionRecord) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		fail("Failed to render record: %v", err)
	}
	fmt.Println(string(data))
}
