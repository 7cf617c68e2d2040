// Copyright 2025 Flux Point Studios
//
// poi is a small CLI exercising the PoI SDK core end-to-end: record a
// demo run, finalize it into a bundle and verify that bundle, and parse
// an anchor envelope from a JSON file.
//
// Grounded on the teacher's cmd/bls-zk-setup/main.go (a thin main()
// delegating into a library function, errors reported to stderr with
// a non-zero exit) and the flag-based subcommand style in
// accumulate-lite-client-2/liteclient/cmd/test-devnet/main.go.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/anchor"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chunkpacker"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/trace"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "demo":
		err = runDemo(os.Args[2:])
	case "verify-bundle":
		err = runVerifyBundle(os.Args[2:])
	case "parse-anchor":
		err = runParseAnchor(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: poi <demo|verify-bundle|parse-anchor> [flags]")
}

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	agentID := fs.String("agent", "demo-agent", "agent identifier for the run")
	out := fs.String("out", "", "write the finalized bundle as JSON to this path (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine := trace.NewEngine(*agentID)
	span, err := engine.StartSpan("demo-task", "")
	if err != nil {
		return fmt.Errorf("start span: %w", err)
	}

	steps := []struct {
		kind    chunkpacker.EventKind
		payload map[string]interface{}
	}{
		{chunkpacker.KindInferenceStart, map[string]interface{}{"model": "demo-model"}},
		{chunkpacker.KindToolCall, map[string]interface{}{"tool": "search", "query": "poi sdk"}},
		{chunkpacker.KindToolResult, map[string]interface{}{"result": "3 matches"}},
		{chunkpacker.KindInferenceEnd, map[string]interface{}{"tokens": 128}},
	}
	for _, step := range steps {
		if _, err := engine.Record(trace.RecordInput{
			Kind:    step.kind,
			SpanID:  span.ID,
			Payload: step.payload,
		}); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
	}

	if err := engine.EndSpan(span.ID); err != nil {
		return fmt.Errorf("end span: %w", err)
	}

	bundle, err := engine.Finalize()
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	result := trace.VerifyBundle(bundle)
	fmt.Fprintf(os.Stderr, "run %s finalized: rootHash=%s merkleRoot=%s valid=%v\n",
		bundle.Run.ID, bundle.Run.RootHash, bundle.MerkleRoot, result.Valid)

	encoded, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	if *out == "" {
		fmt.Println(string(encoded))
		return nil
	}
	return os.WriteFile(*out, encoded, 0o644)
}

func runVerifyBundle(args []string) error {
	fs := flag.NewFlagSet("verify-bundle", flag.ExitOnError)
	path := fs.String("file", "", "path to a bundle JSON file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-file is required")
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("read bundle file: %w", err)
	}
	var bundle trace.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return fmt.Errorf("decode bundle: %w", err)
	}

	result := trace.VerifyBundle(&bundle)
	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(encoded))
	if !result.Valid {
		os.Exit(2)
	}
	return nil
}

func runParseAnchor(args []string) error {
	fs := flag.NewFlagSet("parse-anchor", flag.ExitOnError)
	path := fs.String("file", "", "path to an anchor envelope JSON file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-file is required")
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("read envelope file: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	result := anchor.ParseEnvelope(raw)
	encoded, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(encoded))
	if len(result.Errors) > 0 {
		os.Exit(2)
	}
	return nil
}
